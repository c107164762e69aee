package artifact

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"batchscore/internal/contract"
)

// preproDoc is the preferred single-document layout. Means and stds are keyed
// by column name and only become vectors once joined against num_cols.
type preproDoc struct {
	NumCols    []string             `yaml:"num_cols"`
	Means      map[string]*number   `yaml:"means"`
	Stds       map[string]*number   `yaml:"stds"`
	ClipBounds map[string]*clipPair `yaml:"clip_bounds"`
	InputDim   *number              `yaml:"input_dim"`
	NClasses   *number              `yaml:"n_classes"`

	path string
}

func parsePrepro(raw []byte, path string) (*preproDoc, error) {
	var doc preproDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", contract.ErrSchemaMismatch, path, err)
	}
	doc.path = path
	var missing []string
	if doc.NumCols == nil {
		missing = append(missing, "num_cols")
	}
	if doc.Means == nil {
		missing = append(missing, "means")
	}
	if doc.Stds == nil {
		missing = append(missing, "stds")
	}
	if doc.InputDim == nil {
		missing = append(missing, "input_dim")
	}
	if doc.NClasses == nil {
		missing = append(missing, "n_classes")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s lacks required keys %v", contract.ErrSchemaMismatch, path, missing)
	}
	return &doc, nil
}

func (d *preproDoc) contract() (*contract.Contract, error) {
	mean, err := joinByColumn(d.NumCols, d.Means, d.path+" means")
	if err != nil {
		return nil, err
	}
	std, err := joinByColumn(d.NumCols, d.Stds, d.path+" stds")
	if err != nil {
		return nil, err
	}
	inputDim, err := d.InputDim.integer("input_dim")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrSchemaMismatch, d.path, err)
	}
	nClasses, err := d.NClasses.integer("n_classes")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrSchemaMismatch, d.path, err)
	}

	var bounds map[string]contract.ClipRange
	for col, pair := range d.ClipBounds {
		if pair == nil || pair.absent {
			continue
		}
		if bounds == nil {
			bounds = make(map[string]contract.ClipRange, len(d.ClipBounds))
		}
		bounds[col] = contract.ClipRange{
			Low:  contract.Finite(pair.low.float()),
			High: contract.Finite(pair.high.float()),
		}
	}

	return &contract.Contract{
		FeatureColumns: append([]string(nil), d.NumCols...),
		ClipBounds:     bounds,
		Mean:           mean,
		Std:            std,
		InputDim:       inputDim,
		NClasses:       nClasses,
		Layout:         contract.LayoutPrepro,
		Files:          []string{d.path},
	}, nil
}

// joinByColumn orders a keyed mapping by cols and fails on every absent key.
func joinByColumn(cols []string, byName map[string]*number, where string) ([]float32, error) {
	out := make([]float32, len(cols))
	var missing []string
	for i, c := range cols {
		v, ok := byName[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		out[i] = float32(v.float())
	}
	if len(missing) > 0 {
		return nil, contract.MissingFromArtifact(where, missing)
	}
	return out, nil
}
