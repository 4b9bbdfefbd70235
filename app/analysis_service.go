package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"abmviz/domain/core"
	"abmviz/domain/dataset"
	"abmviz/internal"
	"abmviz/internal/aggregation"
	"abmviz/internal/errors"
	"abmviz/internal/report"
	"abmviz/internal/scale"
	"abmviz/ports"
)

const (
	opLoad     = "load scenarios"
	opRequired = "check required"
	opCharts   = "render charts"
)

// AnalysisService runs the post-processing of one baseline against a set of
// shock scenarios and keeps the outcome of the last completed run
type AnalysisService struct {
	loader   ports.DatasetLoader
	exporter ports.ComparisonExporter
	charts   ports.ChartRenderer
	engine   *aggregation.Engine
	logger   *internal.Logger

	mu   sync.RWMutex
	last *RunOutcome
}

var _ ports.RunSource = (*AnalysisService)(nil)

// RunRequest names the inputs of a run. ScenarioNames is index-aligned with
// ScenarioFiles.
type RunRequest struct {
	Baseline      string
	ScenarioFiles []string
	ScenarioNames []string
	// Tracked defaults to dataset.DefaultTracked when empty
	Tracked     []string
	Thing       string
	SectorThing string
}

// RunOutcome is the result of a completed run
type RunOutcome struct {
	Summary   report.Summary
	Result    *aggregation.Result
	Baseline  *dataset.Dataset
	Scenarios []*dataset.Dataset
	Markdown  []byte
	HTML      []byte
}

// NewAnalysisService creates an analysis service. exporter and charts may be
// nil to skip those outputs.
func NewAnalysisService(loader ports.DatasetLoader, exporter ports.ComparisonExporter, charts ports.ChartRenderer,
	engine *aggregation.Engine, logger *internal.Logger) *AnalysisService {
	return &AnalysisService{
		loader:   loader,
		exporter: exporter,
		charts:   charts,
		engine:   engine,
		logger:   logger.OrDefault(),
	}
}

// Run loads the datasets, derives means, sector aggregates and comparisons,
// then writes the workbook, charts and report
func (s *AnalysisService) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	started := time.Now()
	runID := core.NewRunID()
	s.logger.Info("[Analysis] run %s: baseline %s, %d scenario files", runID, req.Baseline, len(req.ScenarioFiles))

	if req.Baseline == "" {
		return nil, errors.InvalidInput("baseline dataset name is required")
	}
	if len(req.ScenarioFiles) == 0 {
		return nil, errors.InvalidInput("at least one scenario is required")
	}

	// Step 1: Load baseline
	base, err := s.loader.Load(ctx, req.Baseline)
	if err != nil {
		return nil, errors.Wrapf(err, "baseline %s", req.Baseline)
	}

	// Step 2: Load scenarios, skipping the ones that fail
	var diags []dataset.Diagnostic
	var scenarios []*dataset.Dataset
	var names, failed []string
	for i, file := range req.ScenarioFiles {
		sc, err := s.loader.Load(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("[Analysis] skipping scenario %s: %v", file, err)
			diags = append(diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opLoad, Dataset: file, Message: err.Error()})
			failed = append(failed, file)
			continue
		}
		scenarios = append(scenarios, sc)
		names = append(names, scenarioName(req.ScenarioNames, i, file))
	}
	if len(scenarios) == 0 {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("no scenario could be loaded from %v", req.ScenarioFiles))
	}

	// Step 3: Means, sector aggregates and comparisons
	tracked := req.Tracked
	if len(tracked) == 0 {
		tracked = dataset.DefaultTracked()
	}
	result, err := s.engine.RunFullPipeline(ctx, base, scenarios, tracked)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline")
	}
	diags = append(diags, result.Diagnostics...)

	// Step 4: Surface missing required variables before anything is drawn
	missing := aggregation.MissingRequired(base, []string{req.Thing, req.SectorThing})
	for _, name := range missing {
		s.logger.Warn("[Analysis] required variable %s is missing, some outputs will be incomplete", name)
		diags = append(diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opRequired, Dataset: base.Name(), Variable: name,
			Message: "required for charts and scale ranges, not present"})
	}

	// Step 5: Shared scale ranges
	ranges, err := scale.Compute(result.RelativeDiff, req.Thing, req.SectorThing)
	if err != nil {
		return nil, errors.Wrap(err, "scale ranges")
	}

	summary := report.Summary{
		RunID:     runID.String(),
		StartedAt: started,
		Baseline:  base.Name(),
		Scenarios: names,
		Failed:    failed,
		Tracked:   result.Tracked,
		Missing:   missing,
		Ranges:    ranges,
		Thing:     req.Thing,
		Sector:    req.SectorThing,
	}

	// Step 6: Workbook
	if s.exporter != nil {
		path, err := s.exporter.Export(ctx, ports.ComparisonSet{
			RunID:        runID,
			Scenarios:    names,
			Variables:    exportVariables(result.Tracked),
			Relative:     result.Relative,
			AbsoluteDiff: result.AbsoluteDiff,
			RelativeDiff: result.RelativeDiff,
		})
		if err != nil {
			return nil, errors.Wrap(err, "comparison export")
		}
		summary.Workbook = path
	}

	// Step 7: Time-series charts of the headline variable
	if s.charts != nil {
		written, skipped, chartDiags, err := s.renderCharts(ctx, req.Thing, base, scenarios, names, result, ranges)
		if err != nil {
			return nil, errors.Wrap(err, "charts")
		}
		diags = append(diags, chartDiags...)
		summary.Charts, summary.Skipped = written, skipped
	}

	// Step 8: Report
	summary.Duration = time.Since(started)
	summary.Diagnostics = diags
	summary.DiagnosticCount = len(diags)
	md := report.Markdown(summary)
	outcome := &RunOutcome{
		Summary:   summary,
		Result:    result,
		Baseline:  base,
		Scenarios: scenarios,
		Markdown:  md,
		HTML:      report.HTML(md, "abmviz run "+summary.RunID),
	}

	s.mu.Lock()
	s.last = outcome
	s.mu.Unlock()

	s.logger.Info("[Analysis] run %s done in %s: %d scenarios, %d diagnostics (%d warnings)",
		runID, summary.Duration.Round(time.Millisecond), len(scenarios), len(diags), summary.Warnings())
	return outcome, nil
}

func (s *AnalysisService) renderCharts(ctx context.Context, thing string, base *dataset.Dataset, scenarios []*dataset.Dataset,
	names []string, result *aggregation.Result, ranges scale.Ranges) (int, int, []dataset.Diagnostic, error) {
	baseline, ok := base.Get(thing)
	if !ok {
		return 0, 0, nil, nil
	}

	abs := ports.ChartRequest{Thing: thing, Kind: ports.ChartAbsolute, Baseline: baseline}
	rel := ports.ChartRequest{Thing: thing, Kind: ports.ChartRelativeDiff,
		YMin: ranges.Thing.Min, YMax: ranges.Thing.Max, FixedY: true}
	var diags []dataset.Diagnostic
	for i, sc := range scenarios {
		if arr, ok := sc.Get(thing); ok {
			abs.Series = append(abs.Series, ports.Series{Name: names[i], Values: arr})
		}
		if arr, ok := result.RelativeDiff[i][thing]; ok {
			rel.Series = append(rel.Series, ports.Series{Name: names[i], Values: arr})
		} else {
			diags = append(diags, dataset.Diagnostic{Severity: dataset.SeverityWarning, Op: opCharts, Dataset: sc.Name(), Variable: thing,
				Message: "no relative difference, scenario left out of the chart"})
		}
	}

	written, skipped := 0, 0
	for _, req := range []ports.ChartRequest{abs, rel} {
		if len(req.Series) == 0 {
			continue
		}
		w, sk, err := s.charts.RenderTimeSeries(ctx, req)
		if err != nil {
			return written, skipped, diags, err
		}
		written += len(w)
		skipped += len(sk)
	}
	return written, skipped, diags, nil
}

// Summary returns the summary of the last completed run
func (s *AnalysisService) Summary(ctx context.Context) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, false
	}
	return s.last.Summary, true
}

// ReportHTML returns the rendered report of the last completed run
func (s *AnalysisService) ReportHTML(ctx context.Context) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, false
	}
	return s.last.HTML, true
}

// Last returns the last completed run, or nil
func (s *AnalysisService) Last() *RunOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func scenarioName(names []string, i int, file string) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return file
}

// exportVariables keeps the experiment means and their aggregates; raw
// per-experiment arrays are too large for a workbook
func exportVariables(tracked []string) []string {
	var out []string
	for _, name := range tracked {
		if strings.HasSuffix(name, dataset.MeanSuffix) || strings.HasSuffix(name, dataset.MeanSuffix+dataset.Nace1Suffix) {
			out = append(out, name)
		}
	}
	return out
}
