// Package features applies a preprocessing contract to a raw dataset:
// column alignment, optional clipping, standardization, float32 matrix.
package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"batchscore/internal/contract"
)

// StdEpsilon is the threshold below which a standard deviation is replaced
// by 1.0, turning the column into a pure mean shift.
const StdEpsilon = 1e-8

// Dataset is the read-only view of the table being scored.
type Dataset interface {
	Name() string
	Header() []string
	Len() int
	Cell(row, col int) string
}

// Transform maps ds through c. It never modifies ds or c, and it either
// returns a complete matrix or an error.
func Transform(ds Dataset, c *contract.Contract) (*Matrix, error) {
	idx, err := align(ds, c.FeatureColumns)
	if err != nil {
		return nil, err
	}

	rows, cols := ds.Len(), len(c.FeatureColumns)
	lo, hi := clipLimits(c)
	mean, std := c.Mean, safeStd(c.Std)

	m := NewMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		out := m.Row(i)
		for j, src := range idx {
			v, err := parseCell(ds.Cell(i, src))
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %q: %w", ds.Name(), i+1, c.FeatureColumns[j], err)
			}
			// NaN compares false on both sides and passes through unclipped.
			if v < lo[j] {
				v = lo[j]
			}
			if v > hi[j] {
				v = hi[j]
			}
			out[j] = (float32(v) - mean[j]) / std[j]
		}
	}
	return m, nil
}

// CheckDim verifies the matrix width against the contract's input_dim.
func CheckDim(m *Matrix, c *contract.Contract) error {
	if m.Cols != c.InputDim {
		return &contract.DimensionError{Got: m.Cols, Want: c.InputDim}
	}
	return nil
}

// align returns, for each contract column, its index in the dataset header.
func align(ds Dataset, want []string) ([]int, error) {
	pos := make(map[string]int)
	for i, h := range ds.Header() {
		pos[h] = i
	}
	idx := make([]int, len(want))
	var missing []string
	for j, name := range want {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[j] = i
	}
	if len(missing) > 0 {
		return nil, contract.MissingFromDataset(ds.Name(), missing)
	}
	return idx, nil
}

// clipLimits expands the contract's clip ranges into per-column limits,
// +-Inf where a column has no entry or the contract has no clipping at all.
func clipLimits(c *contract.Contract) (lo, hi []float64) {
	n := len(c.FeatureColumns)
	lo, hi = make([]float64, n), make([]float64, n)
	for j, name := range c.FeatureColumns {
		lo[j], hi[j] = math.Inf(-1), math.Inf(1)
		if r, ok := c.ClipBounds[name]; ok {
			lo[j], hi[j] = r.Limits()
		}
	}
	return lo, hi
}

func safeStd(std []float32) []float32 {
	out := make([]float32, len(std))
	for j, s := range std {
		if math.Abs(float64(s)) < StdEpsilon {
			out[j] = 1
			continue
		}
		out[j] = s
	}
	return out
}

// naTokens are the cell values read as missing, the same set pandas'
// read_csv uses by default.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// parseCell reads a numeric cell. Blank cells and NA tokens are missing
// values and become NaN.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if _, na := naTokens[s]; na {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}
