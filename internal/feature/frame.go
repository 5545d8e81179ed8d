// Package feature implements the mode-aware transform engine that derives
// every engineered column from the merged claim table. The same code path
// serves training (computing artifacts) and inference (replaying them), so
// the two can never drift apart.
package feature

import (
	"math"

	"github.com/rotisserie/eris"
)

// Frame is the engineered output: named float and string columns over a
// fixed row count. Missing numerics are NaN, missing strings are "".
// A Frame is written only by the transform engine; downstream consumers
// treat it as read-only and copy columns they need to mutate.
type Frame struct {
	n     int
	flo   map[string][]float64
	str   map[string][]string
	order []string
}

// NewFrame creates an empty frame with a fixed row count.
func NewFrame(n int) *Frame {
	return &Frame{
		n:   n,
		flo: make(map[string][]float64),
		str: make(map[string][]string),
	}
}

// NumRows returns the row count.
func (f *Frame) NumRows() int { return f.n }

// Columns returns column names in derivation order.
func (f *Frame) Columns() []string { return f.order }

// Has reports whether the column exists (either type).
func (f *Frame) Has(name string) bool {
	_, okF := f.flo[name]
	_, okS := f.str[name]
	return okF || okS
}

// SetFloat stores a numeric column. The slice length must equal the row
// count; the frame takes ownership of the slice.
func (f *Frame) SetFloat(name string, vals []float64) {
	if len(vals) != f.n {
		panic("feature: column length mismatch for " + name)
	}
	if !f.Has(name) {
		f.order = append(f.order, name)
	}
	f.flo[name] = vals
}

// SetStr stores a string column.
func (f *Frame) SetStr(name string, vals []string) {
	if len(vals) != f.n {
		panic("feature: column length mismatch for " + name)
	}
	if !f.Has(name) {
		f.order = append(f.order, name)
	}
	f.str[name] = vals
}

// Float returns a numeric column.
func (f *Frame) Float(name string) ([]float64, error) {
	v, ok := f.flo[name]
	if !ok {
		return nil, eris.Errorf("feature: no numeric column %q", name)
	}
	return v, nil
}

// Str returns a string column.
func (f *Frame) Str(name string) ([]string, error) {
	v, ok := f.str[name]
	if !ok {
		return nil, eris.Errorf("feature: no string column %q", name)
	}
	return v, nil
}

// Matrix assembles a row-major matrix from the named numeric columns,
// remaining NaNs replaced by zero so tree training never sees them.
func (f *Frame) Matrix(features []string) ([][]float64, error) {
	cols := make([][]float64, len(features))
	for i, name := range features {
		c, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	m := make([][]float64, f.n)
	for r := 0; r < f.n; r++ {
		row := make([]float64, len(features))
		for i := range features {
			v := cols[i][r]
			if math.IsNaN(v) {
				v = 0
			}
			row[i] = v
		}
		m[r] = row
	}
	return m, nil
}
