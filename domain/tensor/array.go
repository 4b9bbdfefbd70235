// Package tensor provides the dense, row-major, real-valued arrays that
// simulation outputs are loaded into.
//
// Arrays carry no labels by default. An array may optionally be tagged with
// one Dim per axis, in which case axis resolution uses the tags instead of
// matching axis lengths against the dimension catalogue.
package tensor

import (
	"fmt"
	"slices"

	"abmviz/domain/core"
)

// Dim names the semantic dimension of one array axis
type Dim string

const (
	DimTime         Dim = "time"
	DimExperiment   Dim = "experiment"
	DimCountry      Dim = "country"
	DimSectorFine   Dim = "sector_fine"
	DimSectorCoarse Dim = "sector_coarse"
)

// Valid reports whether d is one of the known dimensions
func (d Dim) Valid() bool {
	switch d {
	case DimTime, DimExperiment, DimCountry, DimSectorFine, DimSectorCoarse:
		return true
	}
	return false
}

// Array is a dense rectangular array of float64 stored in row-major order
type Array struct {
	shape []int
	data  []float64
	axes  []Dim
}

// New allocates a zero-filled array with the given shape
func New(shape ...int) (*Array, error) {
	n, err := product(shape)
	if err != nil {
		return nil, err
	}
	return &Array{shape: slices.Clone(shape), data: make([]float64, n)}, nil
}

// Full allocates an array with every element set to value
func Full(value float64, shape ...int) (*Array, error) {
	a, err := New(shape...)
	if err != nil {
		return nil, err
	}
	for i := range a.data {
		a.data[i] = value
	}
	return a, nil
}

// FromData wraps data (row-major) in an array of the given shape. The slice
// is not copied.
func FromData(shape []int, data []float64) (*Array, error) {
	n, err := product(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d", core.ErrInvalidShape, shape, n, len(data))
	}
	return &Array{shape: slices.Clone(shape), data: data}, nil
}

// WithAxes returns a tagged view of a sharing the same data
func (a *Array) WithAxes(axes ...Dim) (*Array, error) {
	if len(axes) != len(a.shape) {
		return nil, fmt.Errorf("%w: %d axis tags for rank %d", core.ErrInvalidShape, len(axes), len(a.shape))
	}
	seen := make(map[Dim]bool, len(axes))
	for _, d := range axes {
		if !d.Valid() {
			return nil, fmt.Errorf("%w: unknown axis tag %q", core.ErrInvalidShape, d)
		}
		if seen[d] {
			return nil, fmt.Errorf("%w: duplicate axis tag %q", core.ErrInvalidShape, d)
		}
		seen[d] = true
	}
	return &Array{shape: a.shape, data: a.data, axes: slices.Clone(axes)}, nil
}

// Shape returns a copy of the axis lengths
func (a *Array) Shape() []int { return slices.Clone(a.shape) }

func (a *Array) Rank() int { return len(a.shape) }

// Len returns the total element count
func (a *Array) Len() int { return len(a.data) }

// Data exposes the backing slice. Callers must treat it as read-only.
func (a *Array) Data() []float64 { return a.data }

// Axes returns the axis tags, or nil for an untagged array
func (a *Array) Axes() []Dim { return slices.Clone(a.axes) }

func (a *Array) Tagged() bool { return a.axes != nil }

// AxisOf returns the index of the axis tagged d, or -1
func (a *Array) AxisOf(d Dim) int {
	return slices.Index(a.axes, d)
}

// At returns the element at the given multi-index
func (a *Array) At(idx ...int) float64 {
	return a.data[a.offset(idx)]
}

// Set stores v at the given multi-index
func (a *Array) Set(v float64, idx ...int) {
	a.data[a.offset(idx)] = v
}

// Clone returns a deep copy
func (a *Array) Clone() *Array {
	return &Array{shape: slices.Clone(a.shape), data: slices.Clone(a.data), axes: slices.Clone(a.axes)}
}

// SameShape reports whether a and b have identical axis lengths
func SameShape(a, b *Array) bool {
	return slices.Equal(a.shape, b.shape)
}

// Equal reports whether a and b have the same shape and bit-identical data
func Equal(a, b *Array) bool {
	return SameShape(a, b) && slices.Equal(a.data, b.data)
}

func (a *Array) String() string {
	if a.axes != nil {
		return fmt.Sprintf("Array%v%v", a.shape, a.axes)
	}
	return fmt.Sprintf("Array%v", a.shape)
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(a.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range [0,%d) on axis %d", v, a.shape[i], i))
		}
		off = off*a.shape[i] + v
	}
	return off
}

// split returns the element counts before and after axis in row-major order
func (a *Array) split(axis int) (outer, inner int) {
	outer, inner = 1, 1
	for i, n := range a.shape {
		switch {
		case i < axis:
			outer *= n
		case i > axis:
			inner *= n
		}
	}
	return outer, inner
}

func product(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative axis length in %v", core.ErrInvalidShape, shape)
		}
		n *= d
	}
	return n, nil
}
