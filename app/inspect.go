package app

import (
	"context"
	"fmt"

	"abmviz/domain/catalogue"
	"abmviz/domain/tensor"
	"abmviz/internal/aggregation"
	"abmviz/internal/errors"
	"abmviz/internal/layout"
	"abmviz/ports"
)

// ExpectedVariables are checked by Inspect
var ExpectedVariables = []string{"real_output", "real_sector_output", "nominal_gdp", "real_gdp", "unemployment_rate"}

// InspectedVariable is one stored variable with its axes labelled
type InspectedVariable struct {
	Name  string   `json:"name"`
	Shape []int    `json:"shape"`
	Axes  []string `json:"axes"`
}

// InspectReport says whether a dataset can be fed to a run
type InspectReport struct {
	Dataset    string              `json:"dataset"`
	Variables  []InspectedVariable `json:"variables"`
	Missing    []string            `json:"missing"`
	Issues     []string            `json:"issues,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
	Compatible bool                `json:"compatible"`
}

// Inspector checks stored datasets against the catalogue without loading
// their array data
type Inspector struct {
	loader ports.DatasetLoader
	cat    *catalogue.Catalogue
}

// NewInspector creates an inspector
func NewInspector(loader ports.DatasetLoader, cat *catalogue.Catalogue) *Inspector {
	return &Inspector{loader: loader, cat: cat}
}

// Inspect lists the variables of name and runs the compatibility checks.
// Catalogue ambiguities and unmatched fine sectors are reported as warnings.
func (in *Inspector) Inspect(ctx context.Context, name string) (*InspectReport, error) {
	infos, err := in.loader.Peek(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "inspect %s", name)
	}

	rep := &InspectReport{Dataset: name}
	byName := make(map[string]ports.VariableInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
		axes := make([]tensor.Dim, len(info.Axes))
		for i, a := range info.Axes {
			axes[i] = tensor.Dim(a)
		}
		rep.Variables = append(rep.Variables, InspectedVariable{
			Name:  info.Name,
			Shape: info.Shape,
			Axes:  layout.DescribeShape(info.Name, info.Shape, axes, in.cat),
		})
	}
	for _, v := range ExpectedVariables {
		if _, ok := byName[v]; !ok {
			rep.Missing = append(rep.Missing, v)
		}
	}

	if out, ok := byName["real_output"]; !ok {
		rep.Issues = append(rep.Issues, "missing real_output")
	} else if len(out.Shape) < 2 {
		rep.Issues = append(rep.Issues, fmt.Sprintf("real_output has %d axes, need at least time and experiment", len(out.Shape)))
	}

	if sec, ok := byName["real_sector_output"]; ok {
		switch {
		case len(sec.Shape) < 3:
			rep.Issues = append(rep.Issues, fmt.Sprintf("real_sector_output has unexpected shape %v", sec.Shape))
		case layout.ResolveAxis(sec.Shape, in.cat.Lengths().SectorFine) == layout.NotFound:
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("real_sector_output shape %v has no axis of %d fine sectors, sector aggregation will be skipped",
				sec.Shape, in.cat.Lengths().SectorFine))
		}
	}

	for _, d := range aggregation.CatalogueDiagnostics(in.cat) {
		rep.Warnings = append(rep.Warnings, d.Message)
	}

	rep.Compatible = len(rep.Issues) == 0
	return rep, nil
}
