package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrArtifactNotFound  = errors.New("artifacts not found")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrColumnAlignment   = errors.New("column alignment")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// NotFoundError lists every location that was searched.
type NotFoundError struct {
	What     string
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found, searched: %s", ErrArtifactNotFound, e.What, strings.Join(e.Searched, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrArtifactNotFound }

// MissingColumnsError names columns required by the contract that are absent
// from Where (a mapping in an artifact or the dataset header).
type MissingColumnsError struct {
	Where   string
	Columns []string
	kind    error
}

// MissingFromArtifact is a schema mismatch: a keyed artifact mapping lacks columns.
func MissingFromArtifact(where string, cols []string) *MissingColumnsError {
	return &MissingColumnsError{Where: where, Columns: cols, kind: ErrSchemaMismatch}
}

// MissingFromDataset is a column alignment failure.
func MissingFromDataset(where string, cols []string) *MissingColumnsError {
	return &MissingColumnsError{Where: where, Columns: cols, kind: ErrColumnAlignment}
}

func (e *MissingColumnsError) Error() string {
	quoted := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf("%s: missing column(s) in %s: [%s]", e.Unwrap(), e.Where, strings.Join(quoted, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	if e.kind == nil {
		return ErrColumnAlignment
	}
	return e.kind
}

// ShapeError reports normalizer arrays that disagree with the column count.
// It matches both ErrSchemaMismatch and ErrDimensionMismatch.
type ShapeError struct {
	Mean    []int
	Std     []int
	Columns int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: normalizer mean=%s std=%s num_cols=%d",
		ErrSchemaMismatch, shape(e.Mean), shape(e.Std), e.Columns)
}

func (e *ShapeError) Unwrap() []error { return []error{ErrSchemaMismatch, ErrDimensionMismatch} }

// DimensionError reports a transformed width that disagrees with input_dim.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: transformed width %d vs input_dim %d", ErrDimensionMismatch, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

func shape(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprint(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
