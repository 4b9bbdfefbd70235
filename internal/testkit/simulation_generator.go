package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"abmviz/domain/catalogue"
	"abmviz/domain/dataset"
	"abmviz/domain/tensor"
)

// SimulationGeneratorConfig configures the synthetic simulation output generator
type SimulationGeneratorConfig struct {
	Seed int64 `json:"seed"`
	// Level is the mean baseline value of every generated variable
	Level float64 `json:"level"`
	// Noise is the relative spread between experiments
	Noise float64 `json:"noise"`
	// Shock is the peak relative change of a scenario against the baseline
	Shock float64 `json:"shock"`
	// ShockQuarter is the time step where the shock peaks
	ShockQuarter int `json:"shock_quarter"`
}

// DefaultSimulationConfig returns sensible defaults for synthetic runs
func DefaultSimulationConfig() SimulationGeneratorConfig {
	return SimulationGeneratorConfig{
		Seed:         42,
		Level:        100,
		Noise:        0.02,
		Shock:        -0.05,
		ShockQuarter: 2,
	}
}

// Variables shaped (time, experiment, country)
var countryVariables = []string{"real_output", "real_gdp", "nominal_gdp", "real_household_consumption", "unemployment_rate"}

// Variables shaped (time, experiment, country, sector)
var sectorVariables = []string{"real_sector_output", "nominal_sector_output", "real_sector_gva"}

// TrackedVariables lists every variable the generator produces plus
// euribor, shaped (time, experiment)
func TrackedVariables() []string {
	out := append([]string(nil), countryVariables...)
	out = append(out, sectorVariables...)
	return append(out, "euribor")
}

// SimulationGenerator produces baseline and shock scenario datasets shaped by a catalogue
type SimulationGenerator struct {
	config SimulationGeneratorConfig
	cat    *catalogue.Catalogue
	rng    *rand.Rand
}

// NewSimulationGenerator creates a new generator
func NewSimulationGenerator(cat *catalogue.Catalogue, config SimulationGeneratorConfig) *SimulationGenerator {
	return &SimulationGenerator{
		config: config,
		cat:    cat,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Baseline generates the no-shock dataset
func (g *SimulationGenerator) Baseline(name string) (*dataset.Dataset, error) {
	l := g.cat.Lengths()
	ds := dataset.New(name)

	for _, v := range countryVariables {
		arr, err := g.noisy(l.Time, l.Experiment, l.Country)
		if err != nil {
			return nil, err
		}
		if err := ds.Put(v, arr); err != nil {
			return nil, err
		}
	}
	for _, v := range sectorVariables {
		arr, err := g.noisy(l.Time, l.Experiment, l.Country, l.SectorFine)
		if err != nil {
			return nil, err
		}
		if err := ds.Put(v, arr); err != nil {
			return nil, err
		}
	}
	euribor, err := g.noisy(l.Time, l.Experiment)
	if err != nil {
		return nil, err
	}
	if err := ds.Put("euribor", euribor); err != nil {
		return nil, err
	}
	return ds, nil
}

// Scenario derives a shock scenario from base. The shock follows a bump
// around ShockQuarter and scales with strength, which varies per country.
func (g *SimulationGenerator) Scenario(name string, base *dataset.Dataset) (*dataset.Dataset, error) {
	ds := dataset.New(name)
	l := g.cat.Lengths()

	strength := make([]float64, l.Country)
	for c := range strength {
		strength[c] = 0.5 + g.rng.Float64()
	}

	for _, v := range base.Names() {
		arr, _ := base.Get(v)
		shocked := arr.Clone()
		shape := shocked.Shape()
		data := shocked.Data()

		inner := 1
		for _, n := range shape[1:] {
			inner *= n
		}
		// country is the third axis of every generated array of rank three or more
		rest := 1
		if len(shape) >= 3 {
			for _, n := range shape[3:] {
				rest *= n
			}
		}
		for t := 0; t < shape[0]; t++ {
			bump := g.config.Shock * math.Exp(-math.Pow(float64(t-g.config.ShockQuarter), 2)/4)
			for k := 0; k < inner; k++ {
				factor := 1 + bump
				if len(shape) >= 3 {
					factor = 1 + bump*strength[(k/rest)%shape[2]]
				}
				data[t*inner+k] *= factor
			}
		}
		if err := ds.Put(v, shocked); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
	}
	return ds, nil
}

func (g *SimulationGenerator) noisy(shape ...int) (*tensor.Array, error) {
	arr, err := tensor.New(shape...)
	if err != nil {
		return nil, err
	}
	data := arr.Data()
	for i := range data {
		data[i] = g.config.Level * (1 + g.config.Noise*g.rng.NormFloat64())
	}
	return arr, nil
}

// Constant builds a dataset holding one array of the given shape filled with value
func Constant(name, variable string, value float64, shape ...int) (*dataset.Dataset, error) {
	arr, err := tensor.Full(value, shape...)
	if err != nil {
		return nil, err
	}
	ds := dataset.New(name)
	if err := ds.Put(variable, arr); err != nil {
		return nil, err
	}
	return ds, nil
}
