package aggregation

import (
	"fmt"

	"abmviz/domain/core"
	"abmviz/domain/dataset"
	"abmviz/domain/tensor"
)

// Comparison holds the three comparison maps of one scenario against the baseline
type Comparison struct {
	// Relative is scenario / baseline
	Relative dataset.Vars
	// AbsoluteDiff is scenario - baseline
	AbsoluteDiff dataset.Vars
	// RelativeDiff is (scenario - baseline) / baseline
	RelativeDiff dataset.Vars
}

func newComparison() Comparison {
	return Comparison{
		Relative:     make(dataset.Vars),
		AbsoluteDiff: make(dataset.Vars),
		RelativeDiff: make(dataset.Vars),
	}
}

// ComputeComparisons compares every named variable held by both base and
// scenario. Elements where the baseline is exactly zero are zero in Relative
// and RelativeDiff. Variables whose shapes differ are left out of all three
// maps and reported.
func (e *Engine) ComputeComparisons(base, scenario *dataset.Dataset, names []string) (Comparison, []dataset.Diagnostic) {
	cmp := newComparison()
	var diags []dataset.Diagnostic

	for _, name := range names {
		b, inBase := base.Get(name)
		s, inScenario := scenario.Get(name)
		if !inBase || !inScenario {
			if inBase != inScenario {
				holder := base.Name()
				if inScenario {
					holder = scenario.Name()
				}
				e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityInfo, Op: opCompare, Dataset: scenario.Name(), Variable: name,
					Message: fmt.Sprintf("only present in %s, skipped", holder)})
			}
			continue
		}

		if !tensor.SameShape(b, s) {
			err := core.NewShapeMismatchError(name, b.Shape(), s.Shape())
			e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opCompare, Dataset: scenario.Name(), Variable: name,
				Message: err.Error()})
			continue
		}

		rel, abs, relDiff, err := compareArrays(b, s)
		if err != nil {
			e.note(&diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opCompare, Dataset: scenario.Name(), Variable: name,
				Message: err.Error()})
			continue
		}
		cmp.Relative[name] = rel
		cmp.AbsoluteDiff[name] = abs
		cmp.RelativeDiff[name] = relDiff
	}
	return cmp, diags
}

func compareArrays(base, scenario *tensor.Array) (rel, abs, relDiff *tensor.Array, err error) {
	if rel, err = tensor.SafeDiv(scenario, base); err != nil {
		return nil, nil, nil, err
	}
	if abs, err = tensor.Sub(scenario, base); err != nil {
		return nil, nil, nil, err
	}
	if relDiff, err = tensor.SafeDiv(abs, base); err != nil {
		return nil, nil, nil, err
	}
	return rel, abs, relDiff, nil
}
