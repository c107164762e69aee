// Package model loads a trained feed-forward classifier exported as a JSON
// document and scores feature matrices with it.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"batchscore/internal/contract"
	"batchscore/internal/features"
)

// Layer is one dense layer. Weights has one row per input unit and one
// column per output unit.
type Layer struct {
	Units      int         `json:"units"`
	Activation string      `json:"activation"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
}

// Network is the on-disk model document.
type Network struct {
	Name     string  `json:"name"`
	InputDim int     `json:"input_dim"`
	Layers   []Layer `json:"layers"`

	weights []*mat.Dense
}

// Load reads and validates a model document.
func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model %s: %w", path, err)
	}
	if err := n.compile(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &n, nil
}

// Save writes the model document to path.
func (n *Network) Save(path string) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// compile validates layer chaining and materializes the weight matrices.
func (n *Network) compile() error {
	if n.InputDim <= 0 {
		return fmt.Errorf("input_dim must be positive, got %d", n.InputDim)
	}
	if len(n.Layers) == 0 {
		return fmt.Errorf("model has no layers")
	}
	n.weights = make([]*mat.Dense, len(n.Layers))
	width := n.InputDim
	for i, l := range n.Layers {
		if l.Units <= 0 {
			return fmt.Errorf("layer %d: units must be positive, got %d", i, l.Units)
		}
		if _, ok := activations[l.Activation]; !ok {
			return fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		if len(l.Weights) != width {
			return fmt.Errorf("layer %d: weights have %d rows, want %d", i, len(l.Weights), width)
		}
		if len(l.Bias) != l.Units {
			return fmt.Errorf("layer %d: bias has %d values, want %d", i, len(l.Bias), l.Units)
		}
		flat := make([]float64, 0, width*l.Units)
		for r, row := range l.Weights {
			if len(row) != l.Units {
				return fmt.Errorf("layer %d: weights row %d has %d values, want %d", i, r, len(row), l.Units)
			}
			flat = append(flat, row...)
		}
		n.weights[i] = mat.NewDense(width, l.Units, flat)
		width = l.Units
	}
	return nil
}

func (n *Network) ID() string {
	if n.Name == "" {
		return "network"
	}
	return n.Name
}

// OutputDim is the number of classes the network scores.
func (n *Network) OutputDim() int { return n.Layers[len(n.Layers)-1].Units }

// Forward returns the output activations, one row per input row. Zero
// input rows give an empty, non-nil matrix.
func (n *Network) Forward(x *features.Matrix) (*mat.Dense, error) {
	if x.Cols != n.InputDim {
		return nil, fmt.Errorf("%w: expected %d features, got %d", contract.ErrDimensionMismatch, n.InputDim, x.Cols)
	}
	if x.Rows == 0 {
		return &mat.Dense{}, nil
	}
	a := mat.NewDense(x.Rows, x.Cols, x.Float64())
	for i, l := range n.Layers {
		var z mat.Dense
		z.Mul(a, n.weights[i])
		bias := l.Bias
		z.Apply(func(_, j int, v float64) float64 { return v + bias[j] }, &z)
		activations[l.Activation](&z)
		a = &z
	}
	return a, nil
}

// Predict returns the arg-max class index for every row, in row order.
func (n *Network) Predict(x *features.Matrix) ([]int, error) {
	out, err := n.Forward(x)
	if err != nil {
		return nil, err
	}
	preds := make([]int, x.Rows)
	for i := range preds {
		preds[i] = argmax(out.RawRowView(i))
	}
	return preds, nil
}

// argmax picks the first maximum; a NaN wins immediately so that broken
// inputs surface as a fixed class rather than depending on position.
func argmax(row []float64) int {
	best := 0
	for j, v := range row {
		if math.IsNaN(v) {
			return j
		}
		if v > row[best] {
			best = j
		}
	}
	return best
}
