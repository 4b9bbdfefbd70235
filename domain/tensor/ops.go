package tensor

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"abmviz/domain/core"
)

// MeanAxis averages over axis and returns an array of rank one lower. The
// axis tag, if any, is dropped from the result.
func (a *Array) MeanAxis(axis int) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, fmt.Errorf("%w: mean over axis %d of shape %v", core.ErrInvalidShape, axis, a.shape)
	}
	n := a.shape[axis]
	if n == 0 {
		return nil, fmt.Errorf("%w: mean over empty axis %d of shape %v", core.ErrInvalidShape, axis, a.shape)
	}

	outShape := slices.Delete(slices.Clone(a.shape), axis, axis+1)
	out, err := New(outShape...)
	if err != nil {
		return nil, err
	}

	outer, inner := a.split(axis)
	for o := 0; o < outer; o++ {
		dst := out.data[o*inner : (o+1)*inner]
		for i := 0; i < n; i++ {
			start := (o*n + i) * inner
			floats.Add(dst, a.data[start:start+inner])
		}
		floats.Scale(1/float64(n), dst)
	}

	if a.axes != nil {
		out.axes = slices.Delete(slices.Clone(a.axes), axis, axis+1)
	}
	return out, nil
}

// ReduceGroups collapses axis into len(groups) positions: position g of the
// result is the sum of the input positions listed in groups[g]. A position
// outside the axis is an error. The result starts at zero, so an empty group
// yields zeros. When a is tagged the reduced axis is re-tagged as tag.
func (a *Array) ReduceGroups(axis int, groups [][]int, tag Dim) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, fmt.Errorf("%w: group reduction over axis %d of shape %v", core.ErrInvalidShape, axis, a.shape)
	}
	n := a.shape[axis]
	g := len(groups)
	for gi, members := range groups {
		for _, i := range members {
			if i < 0 || i >= n {
				return nil, fmt.Errorf("%w: group %d refers to position %d, axis %d has length %d", core.ErrShapeMismatch, gi, i, axis, n)
			}
		}
	}

	outShape := slices.Clone(a.shape)
	outShape[axis] = g
	out, err := New(outShape...)
	if err != nil {
		return nil, err
	}

	outer, inner := a.split(axis)
	for o := 0; o < outer; o++ {
		for gi, members := range groups {
			dst := out.data[(o*g+gi)*inner : (o*g+gi+1)*inner]
			for _, i := range members {
				start := (o*n + i) * inner
				floats.Add(dst, a.data[start:start+inner])
			}
		}
	}

	if a.axes != nil {
		out.axes = slices.Clone(a.axes)
		out.axes[axis] = tag
	}
	return out, nil
}

// SumAxis sums over axis and returns an array of rank one lower
func (a *Array) SumAxis(axis int) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, fmt.Errorf("%w: sum over axis %d of shape %v", core.ErrInvalidShape, axis, a.shape)
	}
	all := make([]int, a.shape[axis])
	for i := range all {
		all[i] = i
	}
	grouped, err := a.ReduceGroups(axis, [][]int{all}, "")
	if err != nil {
		return nil, err
	}
	outShape := slices.Delete(slices.Clone(a.shape), axis, axis+1)
	out := &Array{shape: outShape, data: grouped.data}
	if a.axes != nil {
		out.axes = slices.Delete(slices.Clone(a.axes), axis, axis+1)
	}
	return out, nil
}

// Sub returns a - b element-wise
func Sub(a, b *Array) (*Array, error) {
	if !SameShape(a, b) {
		return nil, fmt.Errorf("%w: %v - %v", core.ErrShapeMismatch, a.shape, b.shape)
	}
	out := &Array{shape: slices.Clone(a.shape), data: make([]float64, len(a.data)), axes: slices.Clone(a.axes)}
	floats.SubTo(out.data, a.data, b.data)
	return out, nil
}

// SafeDiv returns num / den element-wise, with zero wherever den is exactly zero
func SafeDiv(num, den *Array) (*Array, error) {
	if !SameShape(num, den) {
		return nil, fmt.Errorf("%w: %v / %v", core.ErrShapeMismatch, num.shape, den.shape)
	}
	out := &Array{shape: slices.Clone(num.shape), data: make([]float64, len(num.data)), axes: slices.Clone(num.axes)}
	for i, d := range den.data {
		if d == 0 {
			continue
		}
		out.data[i] = num.data[i] / d
	}
	return out, nil
}

// Sum returns the sum of all elements
func (a *Array) Sum() float64 {
	return floats.Sum(a.data)
}
