package dataset

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"abmviz/domain/core"
	"abmviz/domain/tensor"
)

// Derived variable suffixes. They compose: x_mean_nace1 is the experiment
// mean of x aggregated to coarse sectors.
const (
	MeanSuffix  = "_mean"
	Nace1Suffix = "_nace1"
)

// MeanName returns the name of the experiment-averaged form of name
func MeanName(name string) string { return name + MeanSuffix }

// Nace1Name returns the name of the coarse-sector form of name
func Nace1Name(name string) string { return name + Nace1Suffix }

// IsSectorVariable reports whether name holds a sector axis
func IsSectorVariable(name string) bool { return strings.Contains(name, "sector") }

// IsDerived reports whether name carries a derived suffix
func IsDerived(name string) bool {
	return strings.HasSuffix(name, MeanSuffix) || strings.HasSuffix(name, Nace1Suffix)
}

// Dataset maps variable names to arrays for one simulation run (the baseline
// or one shock scenario). Variables are only ever added; an existing name is
// never replaced by an array of a different shape.
type Dataset struct {
	name  string
	vars  map[string]*tensor.Array
	order []string
}

// New creates an empty dataset
func New(name string) *Dataset {
	return &Dataset{name: name, vars: make(map[string]*tensor.Array)}
}

// Name returns the dataset label (file or scenario name)
func (d *Dataset) Name() string { return d.name }

// Get returns the array stored under name
func (d *Dataset) Get(name string) (*tensor.Array, bool) {
	a, ok := d.vars[name]
	return a, ok
}

func (d *Dataset) Has(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// Names returns variable names in insertion order
func (d *Dataset) Names() []string { return slices.Clone(d.order) }

func (d *Dataset) Len() int { return len(d.order) }

// Put stores arr under name. Re-storing a name is allowed only with an array
// of the same shape.
func (d *Dataset) Put(name string, arr *tensor.Array) error {
	if arr == nil {
		return fmt.Errorf("dataset %s: nil array for %s", d.name, name)
	}
	if existing, ok := d.vars[name]; ok {
		if !tensor.SameShape(existing, arr) {
			return fmt.Errorf("%w: %s in dataset %s has shape %v, new shape %v",
				core.ErrIncompatibleDerived, name, d.name, existing.Shape(), arr.Shape())
		}
		d.vars[name] = arr
		return nil
	}
	d.vars[name] = arr
	d.order = append(d.order, name)
	return nil
}

// Vars is one comparison mapping (relative, absolute or relative difference)
// for a single scenario
type Vars map[string]*tensor.Array

// Names returns the variable names in sorted order
func (v Vars) Names() []string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var defaultTracked = []string{
	"capital_consumption", "capital_loss", "compensation_employees", "euribor",
	"government_debt", "government_deficit", "nominal_capitalformation", "nominal_exports",
	"nominal_fixed_capitalformation", "nominal_fixed_capitalformation_dwellings",
	"nominal_gdp", "nominal_government_consumption", "nominal_gva",
	"nominal_household_consumption", "nominal_imports", "nominal_output", "nominal_sector_gva",
	"nominal_sector_output", "operating_surplus", "real_capitalformation", "real_exports",
	"real_fixed_capitalformation", "real_fixed_capitalformation_dwellings", "real_gdp",
	"real_government_consumption", "real_gva", "real_household_consumption", "real_imports",
	"real_output", "real_sector_gva", "real_sector_output", "sector_capital_consumption",
	"sector_capital_loss", "sector_operating_surplus", "taxes_production", "unemployment_rate",
	"wages",
}

// DefaultTracked returns the variables of the reference model outputs that
// runs derive means, aggregates and comparisons for
func DefaultTracked() []string { return slices.Clone(defaultTracked) }
