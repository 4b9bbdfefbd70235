// Package catalogue holds the reference dimension lists that simulation
// arrays are indexed by: countries, NACE sectors at two granularities, time
// steps and Monte Carlo experiments.
//
// A Catalogue is an immutable value. Build one per pipeline run and pass it
// to the components that need it; two catalogues with different experiment
// counts can be used side by side.
package catalogue

import (
	"fmt"
	"slices"
	"strings"

	"abmviz/domain/core"
	"abmviz/domain/tensor"
)

// Lengths are the reference axis lengths used for shape-based axis inference
type Lengths struct {
	Time         int
	Experiment   int
	Country      int
	SectorFine   int
	SectorCoarse int
}

// Catalogue is the immutable set of dimension labels for one run
type Catalogue struct {
	countries     []string
	countriesISO3 []string
	sectorsFine   []string
	sectorsCoarse []string
	timeSteps     []string
	experiments   []string

	// sectorGroups[c] lists the fine sector positions whose code starts with
	// coarse code c
	sectorGroups [][]int
	unmatched    []string
}

// Definition is the raw input to New
type Definition struct {
	Countries     []string
	CountriesISO3 []string
	SectorsFine   []string
	SectorsCoarse []string
	TimeSteps     []string
	Experiments   []string
}

// New validates def and builds a catalogue with its sector mapping
func New(def Definition) (*Catalogue, error) {
	if len(def.Countries) == 0 {
		return nil, core.NewCatalogError("country list is empty")
	}
	if len(def.CountriesISO3) != 0 && len(def.CountriesISO3) != len(def.Countries) {
		return nil, core.NewCatalogError(fmt.Sprintf("%d ISO3 codes for %d countries", len(def.CountriesISO3), len(def.Countries)))
	}
	if len(def.SectorsFine) == 0 || len(def.SectorsCoarse) == 0 {
		return nil, core.NewCatalogError("sector lists must not be empty")
	}
	if len(def.TimeSteps) == 0 {
		return nil, core.NewCatalogError("time step list is empty")
	}
	if len(def.Experiments) == 0 {
		return nil, core.NewCatalogError("experiment list is empty")
	}
	for name, codes := range map[string][]string{
		"countries":      def.Countries,
		"fine sectors":   def.SectorsFine,
		"coarse sectors": def.SectorsCoarse,
	} {
		if dup, ok := firstDuplicate(codes); ok {
			return nil, core.NewCatalogError(fmt.Sprintf("duplicate code %q in %s", dup, name))
		}
	}

	c := &Catalogue{
		countries:     slices.Clone(def.Countries),
		countriesISO3: slices.Clone(def.CountriesISO3),
		sectorsFine:   slices.Clone(def.SectorsFine),
		sectorsCoarse: slices.Clone(def.SectorsCoarse),
		timeSteps:     slices.Clone(def.TimeSteps),
		experiments:   slices.Clone(def.Experiments),
	}
	c.sectorGroups, c.unmatched = prefixGroups(c.sectorsCoarse, c.sectorsFine)
	return c, nil
}

// prefixGroups maps every coarse code to the fine positions it prefixes
func prefixGroups(coarse, fine []string) ([][]int, []string) {
	groups := make([][]int, len(coarse))
	matched := make([]bool, len(fine))
	for ci, prefix := range coarse {
		for fi, code := range fine {
			if strings.HasPrefix(code, prefix) {
				groups[ci] = append(groups[ci], fi)
				matched[fi] = true
			}
		}
	}
	var unmatched []string
	for fi, ok := range matched {
		if !ok {
			unmatched = append(unmatched, fine[fi])
		}
	}
	return groups, unmatched
}

// WithExperiments returns a copy of c with n generated experiment labels
func (c *Catalogue) WithExperiments(n int) (*Catalogue, error) {
	if n <= 0 {
		return nil, core.NewCatalogError(fmt.Sprintf("experiment count must be positive, got %d", n))
	}
	out := *c
	out.experiments = experimentLabels(n)
	return &out, nil
}

// Lengths returns the reference axis lengths
func (c *Catalogue) Lengths() Lengths {
	return Lengths{
		Time:         len(c.timeSteps),
		Experiment:   len(c.experiments),
		Country:      len(c.countries),
		SectorFine:   len(c.sectorsFine),
		SectorCoarse: len(c.sectorsCoarse),
	}
}

// SectorGroups returns, for each coarse sector, the fine sector positions it aggregates
func (c *Catalogue) SectorGroups() [][]int {
	out := make([][]int, len(c.sectorGroups))
	for i, g := range c.sectorGroups {
		out[i] = slices.Clone(g)
	}
	return out
}

// UnmatchedFineSectors lists fine codes that no coarse code prefixes
func (c *Catalogue) UnmatchedFineSectors() []string { return slices.Clone(c.unmatched) }

func (c *Catalogue) Countries() []string     { return slices.Clone(c.countries) }
func (c *Catalogue) CountriesISO3() []string { return slices.Clone(c.countriesISO3) }
func (c *Catalogue) SectorsFine() []string   { return slices.Clone(c.sectorsFine) }
func (c *Catalogue) SectorsCoarse() []string { return slices.Clone(c.sectorsCoarse) }
func (c *Catalogue) TimeSteps() []string     { return slices.Clone(c.timeSteps) }
func (c *Catalogue) Experiments() []string   { return slices.Clone(c.experiments) }

// Labels returns the labels of dimension d
func (c *Catalogue) Labels(d tensor.Dim) []string {
	switch d {
	case tensor.DimTime:
		return c.TimeSteps()
	case tensor.DimExperiment:
		return c.Experiments()
	case tensor.DimCountry:
		return c.Countries()
	case tensor.DimSectorFine:
		return c.SectorsFine()
	case tensor.DimSectorCoarse:
		return c.SectorsCoarse()
	}
	return nil
}

// Label returns the i-th label of d, or the bare index when out of range
func (c *Catalogue) Label(d tensor.Dim, i int) string {
	var labels []string
	switch d {
	case tensor.DimTime:
		labels = c.timeSteps
	case tensor.DimExperiment:
		labels = c.experiments
	case tensor.DimCountry:
		labels = c.countries
	case tensor.DimSectorFine:
		labels = c.sectorsFine
	case tensor.DimSectorCoarse:
		labels = c.sectorsCoarse
	}
	if i >= 0 && i < len(labels) {
		return labels[i]
	}
	return fmt.Sprintf("%d", i)
}

// Dimensions lists the catalogue dimensions in their reference order
func (c *Catalogue) Dimensions() []tensor.Dim {
	return []tensor.Dim{
		tensor.DimCountry,
		tensor.DimSectorFine,
		tensor.DimSectorCoarse,
		tensor.DimTime,
		tensor.DimExperiment,
	}
}

// Len returns the reference length of d
func (c *Catalogue) Len(d tensor.Dim) int {
	l := c.Lengths()
	switch d {
	case tensor.DimTime:
		return l.Time
	case tensor.DimExperiment:
		return l.Experiment
	case tensor.DimCountry:
		return l.Country
	case tensor.DimSectorFine:
		return l.SectorFine
	case tensor.DimSectorCoarse:
		return l.SectorCoarse
	}
	return 0
}

// Ambiguities lists pairs of dimensions that share a reference length
func (c *Catalogue) Ambiguities() [][2]tensor.Dim {
	dims := c.Dimensions()
	var out [][2]tensor.Dim
	for i := range dims {
		for j := i + 1; j < len(dims); j++ {
			if c.Len(dims[i]) == c.Len(dims[j]) {
				out = append(out, [2]tensor.Dim{dims[i], dims[j]})
			}
		}
	}
	return out
}

func firstDuplicate(codes []string) (string, bool) {
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			return c, true
		}
		seen[c] = true
	}
	return "", false
}
