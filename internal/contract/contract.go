// Package contract holds the preprocessing parameters that must be applied
// identically at training and inference time, and the error kinds raised
// while resolving or applying them.
package contract

import (
	"fmt"
	"math"
)

// Layout identifies which on-disk artifact schema a Contract was parsed from.
type Layout int

const (
	// LayoutPrepro is the single-document schema (prepro.json).
	LayoutPrepro Layout = iota + 1
	// LayoutLegacy is meta.json plus normalizer.npz; it carries no clip bounds.
	LayoutLegacy
)

func (l Layout) String() string {
	switch l {
	case LayoutPrepro:
		return "prepro"
	case LayoutLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Bound is one side of a clip range. An unset bound means unbounded.
type Bound struct {
	Value float64
	Set   bool
}

// Finite returns a set bound. NaN normalizes to unset.
func Finite(v float64) Bound {
	if math.IsNaN(v) {
		return Bound{}
	}
	return Bound{Value: v, Set: true}
}

// Unbounded is the zero Bound.
func Unbounded() Bound { return Bound{} }

// ClipRange is the per-column winsorizing interval.
type ClipRange struct {
	Low  Bound
	High Bound
}

// Limits resolves unset sides to -Inf and +Inf.
func (r ClipRange) Limits() (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if r.Low.Set {
		lo = r.Low.Value
	}
	if r.High.Set {
		hi = r.High.Value
	}
	return lo, hi
}

// Contract is the canonical in-memory form of the preprocessing artifacts.
// It is built once per run and must not be modified afterwards.
type Contract struct {
	FeatureColumns []string
	// ClipBounds is nil when the artifacts define no clipping. Columns without
	// an entry are never clipped.
	ClipBounds map[string]ClipRange
	// Mean and Std are positional with FeatureColumns.
	Mean []float32
	Std  []float32
	// InputDim is read from the artifacts independently of FeatureColumns and
	// is checked against the transformed width.
	InputDim int
	NClasses int

	Layout Layout
	Files  []string
}

// Validate checks internal consistency of a freshly built contract.
func (c *Contract) Validate() error {
	if len(c.FeatureColumns) == 0 {
		return fmt.Errorf("%w: num_cols is empty", ErrSchemaMismatch)
	}
	seen := make(map[string]struct{}, len(c.FeatureColumns))
	for _, name := range c.FeatureColumns {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate column %q in num_cols", ErrSchemaMismatch, name)
		}
		seen[name] = struct{}{}
	}
	if len(c.Mean) != len(c.FeatureColumns) || len(c.Std) != len(c.FeatureColumns) {
		return &ShapeError{Mean: []int{len(c.Mean)}, Std: []int{len(c.Std)}, Columns: len(c.FeatureColumns)}
	}
	return nil
}

// Clipping reports whether any clip range applies.
func (c *Contract) Clipping() bool { return len(c.ClipBounds) > 0 }
