// Package layout maps the axes of simulation arrays to semantic dimensions.
//
// Tagged arrays are resolved from their tags. Untagged arrays go through the
// length-matching heuristic, which compares each axis length with the
// reference lengths of the dimension catalogue and falls back to the
// conventional positions (time, experiment, country, sector) when a length
// does not match. Every fallback is recorded on the returned Layout.
package layout

import (
	"fmt"
	"slices"

	"abmviz/domain/catalogue"
	"abmviz/domain/core"
	"abmviz/domain/tensor"
)

// NotFound marks a dimension with no axis
const NotFound = -1

// Source says how a layout was obtained
type Source string

const (
	// SourceTagged means every axis came from the array's tags
	SourceTagged Source = "tagged"
	// SourceInferred means every assigned axis was matched by length
	SourceInferred Source = "inferred"
	// SourceFallback means at least one dimension was placed by position
	SourceFallback Source = "fallback"
)

// Layout assigns axis indices to dimensions
type Layout struct {
	Rank       int
	Time       int
	Experiment int
	Country    int
	Sector     int
	// SectorDim is DimSectorFine or DimSectorCoarse when Sector is set
	SectorDim tensor.Dim
	Source    Source
	// Fallbacks lists the dimensions placed by position rather than length
	Fallbacks []tensor.Dim
	Notes     []string
}

// Confident reports whether every assigned axis was matched by tag or length
func (l Layout) Confident() bool { return len(l.Fallbacks) == 0 }

// Axis returns the axis index of d, or NotFound
func (l Layout) Axis(d tensor.Dim) int {
	switch d {
	case tensor.DimTime:
		return l.Time
	case tensor.DimExperiment:
		return l.Experiment
	case tensor.DimCountry:
		return l.Country
	case tensor.DimSectorFine, tensor.DimSectorCoarse:
		if l.SectorDim == d {
			return l.Sector
		}
	}
	return NotFound
}

func (l Layout) String() string {
	return fmt.Sprintf("rank=%d time=%d experiment=%d country=%d sector=%d source=%s",
		l.Rank, l.Time, l.Experiment, l.Country, l.Sector, l.Source)
}

func emptyLayout(rank int) Layout {
	return Layout{Rank: rank, Time: NotFound, Experiment: NotFound, Country: NotFound, Sector: NotFound}
}

// ResolveAxis returns the first axis whose length equals target, or NotFound
func ResolveAxis(shape []int, target int) int {
	for i, n := range shape {
		if n == target {
			return i
		}
	}
	return NotFound
}

// resolveFree is ResolveAxis restricted to axes not yet assigned
func resolveFree(shape []int, target int, assigned []bool) int {
	for i, n := range shape {
		if n == target && !assigned[i] {
			return i
		}
	}
	return NotFound
}

// pickFallback returns preferred when it is free, otherwise the lowest free axis
func pickFallback(preferred int, assigned []bool) int {
	if preferred >= 0 && preferred < len(assigned) && !assigned[preferred] {
		return preferred
	}
	return slices.Index(assigned, false)
}

// InferLayout assigns dimensions to the axes of shape from axis lengths alone.
// The sector axis is resolved first, then time, then experiment (rank 4
// only); the country axis is whichever axis remains. Unmatched dimensions
// take their conventional position and are listed in Fallbacks.
func InferLayout(shape []int, known catalogue.Lengths) (Layout, error) {
	rank := len(shape)
	if rank < 2 || rank > 4 {
		return Layout{}, fmt.Errorf("infer layout: %w %d (shape %v)", core.ErrUnsupportedRank, rank, shape)
	}

	l := emptyLayout(rank)
	l.Source = SourceInferred
	assigned := make([]bool, rank)

	assign := func(d tensor.Dim, target, preferred int, required bool) int {
		axis := resolveFree(shape, target, assigned)
		if axis == NotFound {
			if !required {
				return NotFound
			}
			axis = pickFallback(preferred, assigned)
			l.Fallbacks = append(l.Fallbacks, d)
			l.Notes = append(l.Notes, fmt.Sprintf("no axis of length %d for %s in shape %v, assuming axis %d", target, d, shape, axis))
		}
		assigned[axis] = true
		return axis
	}

	switch rank {
	case 4:
		l.Sector = assign(tensor.DimSectorFine, known.SectorFine, 3, true)
		l.Time = assign(tensor.DimTime, known.Time, 0, true)
		l.Experiment = assign(tensor.DimExperiment, known.Experiment, 1, true)
	case 3:
		l.Sector = assign(tensor.DimSectorFine, known.SectorFine, 2, true)
		l.Time = assign(tensor.DimTime, known.Time, 0, true)
	case 2:
		l.Sector = assign(tensor.DimSectorFine, known.SectorFine, NotFound, false)
		l.Time = assign(tensor.DimTime, known.Time, 0, l.Sector == NotFound)
	}
	if l.Sector != NotFound {
		l.SectorDim = tensor.DimSectorFine
	}

	l.Country = slices.Index(assigned, false)
	if l.Country != NotFound && shape[l.Country] != known.Country {
		l.Notes = append(l.Notes, fmt.Sprintf("country axis %d has length %d, catalogue has %d", l.Country, shape[l.Country], known.Country))
	}

	if len(l.Fallbacks) > 0 {
		l.Source = SourceFallback
	}
	return l, nil
}

// FromTags builds a layout from explicit axis tags
func FromTags(axes []tensor.Dim) Layout {
	l := emptyLayout(len(axes))
	l.Source = SourceTagged
	l.Time = slices.Index(axes, tensor.DimTime)
	l.Experiment = slices.Index(axes, tensor.DimExperiment)
	l.Country = slices.Index(axes, tensor.DimCountry)
	if i := slices.Index(axes, tensor.DimSectorFine); i >= 0 {
		l.Sector, l.SectorDim = i, tensor.DimSectorFine
	} else if i := slices.Index(axes, tensor.DimSectorCoarse); i >= 0 {
		l.Sector, l.SectorDim = i, tensor.DimSectorCoarse
	}
	return l
}

// Resolve uses the array's tags when it has them and the length heuristic otherwise
func Resolve(arr *tensor.Array, known catalogue.Lengths) (Layout, error) {
	if arr.Tagged() {
		return FromTags(arr.Axes()), nil
	}
	return InferLayout(arr.Shape(), known)
}
