// Package aggregation turns raw baseline and scenario datasets into the
// derived arrays the charts consume: experiment means, NACE-1 sector
// aggregates, and per-scenario comparisons against the baseline.
//
// Missing variables, shape mismatches and unresolved axes never abort a run;
// they are returned as diagnostics. Only requests that cannot be answered at
// all (sector aggregation on an array of unsupported rank) are errors.
package aggregation

import (
	"fmt"
	"strings"

	"abmviz/domain/catalogue"
	"abmviz/domain/core"
	"abmviz/domain/dataset"
	"abmviz/domain/tensor"
	"abmviz/internal"
	"abmviz/internal/layout"
)

const (
	opMeans     = "compute means"
	opAggregate = "aggregate sectors"
	opCompare   = "compute comparisons"
	opCatalogue = "check catalogue"
)

// Engine computes derived arrays for one catalogue
type Engine struct {
	cat     *catalogue.Catalogue
	known   catalogue.Lengths
	groups  [][]int
	logger  *internal.Logger
	workers int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used to echo diagnostics
func WithLogger(l *internal.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithWorkers bounds the number of scenarios compared concurrently. Values
// below 2 compare scenarios sequentially.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// NewEngine creates an engine bound to cat
func NewEngine(cat *catalogue.Catalogue, opts ...Option) *Engine {
	e := &Engine{
		cat:     cat,
		known:   cat.Lengths(),
		groups:  cat.SectorGroups(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.OrDefault()
	return e
}

// Catalogue returns the catalogue the engine was built with
func (e *Engine) Catalogue() *catalogue.Catalogue { return e.cat }

// CatalogueDiagnostics warns about catalogue properties that weaken length
// inference or aggregation: dimensions sharing a length, and fine sectors no
// coarse code prefixes
func (e *Engine) CatalogueDiagnostics() []dataset.Diagnostic {
	return CatalogueDiagnostics(e.cat)
}

// CatalogueDiagnostics is the catalogue check used by Engine
func CatalogueDiagnostics(cat *catalogue.Catalogue) []dataset.Diagnostic {
	var out []dataset.Diagnostic
	for _, pair := range cat.Ambiguities() {
		out = append(out, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opCatalogue,
			Message: fmt.Sprintf("%s and %s both have length %d, untagged arrays may be misread", pair[0], pair[1], cat.Len(pair[0]))})
	}
	for _, code := range cat.UnmatchedFineSectors() {
		out = append(out, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opCatalogue,
			Message: fmt.Sprintf("fine sector %s has no coarse prefix and is left out of sector aggregates", code)})
	}
	return out
}

func (e *Engine) note(out *[]dataset.Diagnostic, d dataset.Diagnostic) {
	if d.Severity == dataset.SeverityWarning {
		e.logger.Warn("%s", d)
	} else {
		e.logger.Debug("%s", d)
	}
	*out = append(*out, d)
}

// ComputeMeans averages every named variable of ds over its experiment axis
// and stores the result under <name>_mean. Untagged arrays are averaged over
// axis 1; tagged arrays over their experiment axis. Arrays of rank below two
// and absent variables are skipped. It returns the derived names it stored.
func (e *Engine) ComputeMeans(ds *dataset.Dataset, names []string) ([]string, []dataset.Diagnostic) {
	var produced []string
	var diags []dataset.Diagnostic

	for _, name := range names {
		arr, ok := ds.Get(name)
		if !ok {
			e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityInfo, Op: opMeans, Dataset: ds.Name(), Variable: name,
				Message: "variable not present, skipped"})
			continue
		}
		if arr.Rank() < 2 {
			e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityInfo, Op: opMeans, Dataset: ds.Name(), Variable: name,
				Message: fmt.Sprintf("rank %d has no experiment axis, skipped", arr.Rank())})
			continue
		}

		axis := 1
		if arr.Tagged() {
			axis = arr.AxisOf(tensor.DimExperiment)
			if axis < 0 {
				e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityInfo, Op: opMeans, Dataset: ds.Name(), Variable: name,
					Message: "tagged array has no experiment axis, skipped"})
				continue
			}
		}

		mean, err := arr.MeanAxis(axis)
		if err != nil {
			e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opMeans, Dataset: ds.Name(), Variable: name,
				Message: err.Error()})
			continue
		}
		derived := dataset.MeanName(name)
		if err := ds.Put(derived, mean); err != nil {
			e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opMeans, Dataset: ds.Name(), Variable: derived,
				Message: err.Error()})
			continue
		}
		produced = append(produced, derived)
	}
	return produced, diags
}

// AggregateSectors collapses the NACE-62 axis of arr into NACE-1 sections by
// summing, for each section, the fine sectors whose code it prefixes. The
// result has the shape of arr with the sector axis resized to the coarse
// count, zero wherever no fine sector contributes. The returned layout
// describes how the axes of arr were resolved; a non-confident layout means
// a positional fallback was used. A sector axis whose length is not the
// catalogue's fine count is a shape mismatch.
func (e *Engine) AggregateSectors(name string, arr *tensor.Array) (*tensor.Array, layout.Layout, error) {
	shape := arr.Shape()
	if arr.Rank() != 3 && arr.Rank() != 4 {
		return nil, layout.Layout{}, core.NewRankError(opAggregate, name, shape)
	}

	l, err := layout.Resolve(arr, e.known)
	if err != nil {
		return nil, layout.Layout{}, fmt.Errorf("%s: variable %q: %w", opAggregate, name, err)
	}
	if l.Sector == layout.NotFound || l.SectorDim != tensor.DimSectorFine {
		return nil, l, fmt.Errorf("%s: variable %q: %w: no %s axis in %v", opAggregate, name, core.ErrAxisNotFound, tensor.DimSectorFine, arr)
	}

	if n := shape[l.Sector]; n != e.known.SectorFine {
		return nil, l, fmt.Errorf("%s: variable %q: %w: sector axis %d has length %d, catalogue has %d fine sectors",
			opAggregate, name, core.ErrShapeMismatch, l.Sector, n, e.known.SectorFine)
	}

	out, err := arr.ReduceGroups(l.Sector, e.groups, tensor.DimSectorCoarse)
	if err != nil {
		return nil, l, fmt.Errorf("%s: variable %q: %w", opAggregate, name, err)
	}
	return out, l, nil
}

// aggregateInto aggregates name in ds and stores <name>_nace1, reporting
// fallbacks and failures as diagnostics
func (e *Engine) aggregateInto(ds *dataset.Dataset, name string, diags *[]dataset.Diagnostic) bool {
	arr, ok := ds.Get(name)
	if !ok {
		return false
	}
	out, l, err := e.AggregateSectors(name, arr)
	for _, n := range l.Notes {
		e.note(diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opAggregate, Dataset: ds.Name(), Variable: name, Message: n})
	}
	if err != nil {
		e.note(diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opAggregate, Dataset: ds.Name(), Variable: name,
			Message: "skipped: " + err.Error()})
		return false
	}
	derived := dataset.Nace1Name(name)
	if err := ds.Put(derived, out); err != nil {
		e.note(diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opAggregate, Dataset: ds.Name(), Variable: derived,
			Message: err.Error()})
		return false
	}
	return true
}

// MissingRequired returns the names in required that ds does not hold.
// Blank names mean nothing is required and are ignored.
func MissingRequired(ds *dataset.Dataset, required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if !ds.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
