package aggregation

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"abmviz/domain/dataset"
)

// Result is the output of a full pipeline run. The comparison slices are
// index-aligned with the scenarios passed in.
type Result struct {
	// Tracked is the variable list after adding the derived names
	Tracked      []string
	Relative     []dataset.Vars
	AbsoluteDiff []dataset.Vars
	RelativeDiff []dataset.Vars
	Diagnostics  []dataset.Diagnostic
}

// RunFullPipeline computes experiment means, sector aggregates and
// comparisons for base and every scenario. Datasets gain the derived
// variables as a side effect. Per-variable failures become diagnostics; the
// only error is cancellation of ctx.
func (e *Engine) RunFullPipeline(ctx context.Context, base *dataset.Dataset, scenarios []*dataset.Dataset, tracked []string) (*Result, error) {
	var diags []dataset.Diagnostic
	for _, d := range e.CatalogueDiagnostics() {
		e.note(&diags, d)
	}
	things := dedupe(tracked)

	// experiment means
	producedMeans, d := e.ComputeMeans(base, things)
	diags = append(diags, d...)
	for _, sc := range scenarios {
		_, d := e.ComputeMeans(sc, things)
		diags = append(diags, d...)
	}
	things = appendNew(things, producedMeans...)

	// NACE-62 to NACE-1
	for _, name := range slices.Clone(things) {
		if !dataset.IsSectorVariable(name) || !base.Has(name) {
			continue
		}
		if !e.aggregateInto(base, name, &diags) {
			continue
		}
		things = appendNew(things, dataset.Nace1Name(name))
		for _, sc := range scenarios {
			e.aggregateInto(sc, name, &diags)
		}
	}
	e.logger.Debug("[Pipeline] tracked variables after aggregation: %v", things)

	// comparisons, one independent job per scenario
	comparisons := make([]Comparison, len(scenarios))
	scenarioDiags := make([][]dataset.Diagnostic, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.workers, 1))
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			comparisons[i], scenarioDiags[i] = e.ComputeComparisons(base, sc, things)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Tracked:      things,
		Relative:     make([]dataset.Vars, len(scenarios)),
		AbsoluteDiff: make([]dataset.Vars, len(scenarios)),
		RelativeDiff: make([]dataset.Vars, len(scenarios)),
	}
	for i, c := range comparisons {
		res.Relative[i] = c.Relative
		res.AbsoluteDiff[i] = c.AbsoluteDiff
		res.RelativeDiff[i] = c.RelativeDiff
		diags = append(diags, scenarioDiags[i]...)
	}
	res.Diagnostics = diags

	e.logger.Info("[Pipeline] %d scenarios compared on %d variables (%d diagnostics)", len(scenarios), len(things), len(diags))
	return res, nil
}

func dedupe(names []string) []string {
	return appendNew(nil, names...)
}

// appendNew appends the names not already in list
func appendNew(list []string, names ...string) []string {
	for _, n := range names {
		if !slices.Contains(list, n) {
			list = append(list, n)
		}
	}
	return list
}

// Warnings filters diagnostics of warning severity
func (r *Result) Warnings() []dataset.Diagnostic {
	var out []dataset.Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == dataset.SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}
