// Package scale computes the value ranges shared by every chart of a run, so
// that scenarios drawn side by side use the same colour and axis scale.
package scale

import (
	"math"

	"github.com/montanaflynn/stats"

	"abmviz/domain/dataset"
)

// Range is a closed value interval
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Span returns Max - Min
func (r Range) Span() float64 { return r.Max - r.Min }

// Ranges holds the scales of one run
type Ranges struct {
	// Thing is symmetric around zero
	Thing Range `json:"thing"`
	// Sector is the raw extent, always including zero
	Sector Range `json:"sector"`
}

// Extent returns the min and max of values together with zero
func Extent(values []float64) (Range, error) {
	if len(values) == 0 {
		return Range{}, nil
	}
	lo, err := stats.Min(values)
	if err != nil {
		return Range{}, err
	}
	hi, err := stats.Max(values)
	if err != nil {
		return Range{}, err
	}
	return Range{Min: math.Min(lo, 0), Max: math.Max(hi, 0)}, nil
}

// Compute scans every scenario's relative differences for thing and
// sectorThing. Scenarios lacking a variable do not contribute to its range.
func Compute(relDiff []dataset.Vars, thing, sectorThing string) (Ranges, error) {
	var r Ranges
	for _, vars := range relDiff {
		if arr, ok := vars[thing]; ok {
			ext, err := Extent(arr.Data())
			if err != nil {
				return Ranges{}, err
			}
			r.Thing = union(r.Thing, ext)
		}
		if arr, ok := vars[sectorThing]; ok {
			ext, err := Extent(arr.Data())
			if err != nil {
				return Ranges{}, err
			}
			r.Sector = union(r.Sector, ext)
		}
	}
	bound := math.Max(math.Abs(r.Thing.Min), math.Abs(r.Thing.Max))
	r.Thing = Range{Min: -bound, Max: bound}
	return r, nil
}

func union(a, b Range) Range {
	return Range{Min: math.Min(a.Min, b.Min), Max: math.Max(a.Max, b.Max)}
}

// Summary is a short description of one array
type Summary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Summarize describes values; an empty input yields the zero Summary
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, nil
	}
	data := stats.Float64Data(values)
	var s Summary
	var err error
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, err
	}
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, err
	}
	if s.Median, err = data.Median(); err != nil {
		return Summary{}, err
	}
	return s, nil
}
