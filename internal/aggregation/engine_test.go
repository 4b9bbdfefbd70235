package aggregation

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abmviz/domain/catalogue"
	"abmviz/domain/core"
	"abmviz/domain/dataset"
	"abmviz/domain/tensor"
	"abmviz/internal"
	"abmviz/internal/layout"
	"abmviz/internal/testkit"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]Option{WithLogger(internal.NewWriterLogger(internal.LogLevelDebug, &buf))}, opts...)
	return NewEngine(catalogue.Default(), opts...)
}

func filled(t *testing.T, value float64, shape ...int) *tensor.Array {
	t.Helper()
	a, err := tensor.Full(value, shape...)
	require.NoError(t, err)
	return a
}

func sequence(t *testing.T, shape ...int) *tensor.Array {
	t.Helper()
	a, err := tensor.New(shape...)
	require.NoError(t, err)
	for i := range a.Data() {
		a.Data()[i] = float64(i%97) + 0.5
	}
	return a
}

// ============================================================================
// TEST: ComputeMeans
// ============================================================================

func TestComputeMeans_ExperimentAxis(t *testing.T) {
	e := newTestEngine(t)
	ds, err := testkit.Constant("baseline", "real_output", 100, 13, 18, 26)
	require.NoError(t, err)

	produced, diags := e.ComputeMeans(ds, []string{"real_output"})
	assert.Equal(t, []string{"real_output_mean"}, produced)
	assert.Empty(t, diags)

	mean, ok := ds.Get("real_output_mean")
	require.True(t, ok)
	assert.Equal(t, []int{13, 26}, mean.Shape())
	for _, v := range mean.Data() {
		assert.Equal(t, 100.0, v)
	}
}

func TestComputeMeans_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ds := dataset.New("baseline")
	require.NoError(t, ds.Put("real_output", sequence(t, 13, 18, 26)))
	require.NoError(t, ds.Put("real_gdp", sequence(t, 13, 18, 26)))
	raw, _ := ds.Get("real_output")
	rawCopy := raw.Clone()

	e.ComputeMeans(ds, []string{"real_output"})
	first, _ := ds.Get("real_output_mean")
	first = first.Clone()

	_, diags := e.ComputeMeans(ds, []string{"real_output"})
	assert.Empty(t, diags)
	second, _ := ds.Get("real_output_mean")

	assert.True(t, tensor.Equal(first, second), "second computation must be bit-identical")
	stillRaw, _ := ds.Get("real_output")
	assert.True(t, tensor.Equal(rawCopy, stillRaw), "raw variables are untouched")
	assert.Equal(t, []string{"real_output", "real_gdp", "real_output_mean"}, ds.Names())
}

func TestComputeMeans_SkipsAbsentAndLowRank(t *testing.T) {
	e := newTestEngine(t)
	ds := dataset.New("baseline")
	require.NoError(t, ds.Put("euribor_scalar", filled(t, 1, 13)))

	produced, diags := e.ComputeMeans(ds, []string{"missing", "euribor_scalar"})
	assert.Empty(t, produced)
	require.Len(t, diags, 2)
	assert.Equal(t, "missing", diags[0].Variable)
	assert.Equal(t, dataset.SeverityInfo, diags[0].Severity)
	assert.Equal(t, "euribor_scalar", diags[1].Variable)
	assert.False(t, ds.Has("missing_mean"))
}

func TestComputeMeans_TaggedExperimentAxis(t *testing.T) {
	e := newTestEngine(t)
	a := sequence(t, 26, 13, 4)
	tagged, err := a.WithAxes(tensor.DimCountry, tensor.DimTime, tensor.DimExperiment)
	require.NoError(t, err)

	ds := dataset.New("baseline")
	require.NoError(t, ds.Put("real_output", tagged))
	noExp, err := filled(t, 1, 13, 26).WithAxes(tensor.DimTime, tensor.DimCountry)
	require.NoError(t, err)
	require.NoError(t, ds.Put("real_gdp", noExp))

	produced, diags := e.ComputeMeans(ds, []string{"real_output", "real_gdp"})
	assert.Equal(t, []string{"real_output_mean"}, produced)
	require.Len(t, diags, 1)
	assert.Equal(t, "real_gdp", diags[0].Variable)

	mean, _ := ds.Get("real_output_mean")
	assert.Equal(t, []int{26, 13}, mean.Shape())
	assert.Equal(t, []tensor.Dim{tensor.DimCountry, tensor.DimTime}, mean.Axes())

	want, err := a.MeanAxis(2)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), mean.Data())
}

func TestComputeMeans_IncompatibleExistingDerived(t *testing.T) {
	e := newTestEngine(t)
	ds := dataset.New("baseline")
	require.NoError(t, ds.Put("real_output", filled(t, 1, 13, 18, 26)))
	require.NoError(t, ds.Put("real_output_mean", filled(t, 7, 3)))

	produced, diags := e.ComputeMeans(ds, []string{"real_output"})
	assert.Empty(t, produced)
	require.Len(t, diags, 1)
	assert.Equal(t, dataset.SeverityWarning, diags[0].Severity)

	kept, _ := ds.Get("real_output_mean")
	assert.Equal(t, []int{3}, kept.Shape(), "existing key is not overwritten with incompatible data")
}

// ============================================================================
// TEST: AggregateSectors
// ============================================================================

func TestAggregateSectors_PartitionSum(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		shape []int
	}{
		{"rank 3", []int{13, 26, 62}},
		{"rank 4", []int{13, 18, 26, 62}},
		{"rank 4 permuted", []int{62, 13, 26, 18}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sequence(t, tt.shape...)
			out, l, err := e.AggregateSectors("real_sector_output", in)
			require.NoError(t, err)
			assert.True(t, l.Confident())

			wantShape := append([]int(nil), tt.shape...)
			wantShape[l.Sector] = 19
			assert.Equal(t, wantShape, out.Shape())

			inTotals, err := in.SumAxis(l.Sector)
			require.NoError(t, err)
			outTotals, err := out.SumAxis(l.Sector)
			require.NoError(t, err)
			for i := range inTotals.Data() {
				assert.InDelta(t, inTotals.Data()[i], outTotals.Data()[i], 1e-9)
			}
		})
	}
}

func TestAggregateSectors_GroupValues(t *testing.T) {
	e := newTestEngine(t)
	in := filled(t, 1, 13, 26, 62)

	out, _, err := e.AggregateSectors("real_sector_output", in)
	require.NoError(t, err)

	// every coarse value counts its fine sectors: A has 3, C has 19, B has 1
	assert.Equal(t, 3.0, out.At(0, 0, 0))
	assert.Equal(t, 1.0, out.At(0, 0, 1))
	assert.Equal(t, 19.0, out.At(4, 7, 2))
	assert.Equal(t, 3.0, out.At(12, 25, 18))
}

func TestAggregateSectors_UnmatchedGroupIsZero(t *testing.T) {
	cat, err := catalogue.New(catalogue.Definition{
		Countries:     []string{"AT", "BE"},
		SectorsFine:   []string{"A01", "A02", "B"},
		SectorsCoarse: []string{"A", "B", "Z"},
		TimeSteps:     []string{"Q0", "Q1", "Q2", "Q3", "Q4"},
		Experiments:   []string{"E0", "E1", "E2", "E3"},
	})
	require.NoError(t, err)
	e := NewEngine(cat, WithLogger(internal.NewWriterLogger(internal.LogLevelError, &bytes.Buffer{})))

	out, _, err := e.AggregateSectors("sector_output", filled(t, 5, 5, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2, 3}, out.Shape())
	for ti := 0; ti < 5; ti++ {
		for c := 0; c < 2; c++ {
			assert.Equal(t, 10.0, out.At(ti, c, 0))
			assert.Equal(t, 5.0, out.At(ti, c, 1))
			assert.Equal(t, 0.0, out.At(ti, c, 2), "coarse codes with no fine sector stay at zero")
		}
	}
}

func TestAggregateSectors_FallbackAxisIsSkipped(t *testing.T) {
	e := newTestEngine(t)
	for _, shape := range [][]int{{13, 26, 60}, {13, 26, 70}, {13, 18, 26, 61}} {
		out, l, err := e.AggregateSectors("real_sector_output", filled(t, 1, shape...))
		require.Error(t, err, "shape %v", shape)
		assert.ErrorIs(t, err, core.ErrShapeMismatch)
		assert.Contains(t, err.Error(), "real_sector_output")
		assert.Nil(t, out, "no partial sums for a sector axis of the wrong length")
		assert.Equal(t, len(shape)-1, l.Sector)
		assert.False(t, l.Confident())
		assert.NotEmpty(t, l.Notes)
	}
}

func TestRunFullPipeline_FallbackAxisIsSkipped(t *testing.T) {
	e := newTestEngine(t)
	base, scen := dataset.New("baseline"), dataset.New("flood")
	require.NoError(t, base.Put("real_sector_output", filled(t, 1, 13, 26, 60)))
	require.NoError(t, scen.Put("real_sector_output", filled(t, 2, 13, 26, 60)))

	res, err := e.RunFullPipeline(context.Background(), base, []*dataset.Dataset{scen}, []string{"real_sector_output"})
	require.NoError(t, err)

	assert.False(t, base.Has("real_sector_output_nace1"))
	assert.NotContains(t, res.Tracked, "real_sector_output_nace1")
	var skipped bool
	for _, d := range res.Warnings() {
		if d.Variable == "real_sector_output" && d.Op == "aggregate sectors" && strings.HasPrefix(d.Message, "skipped") {
			skipped = true
		}
	}
	assert.True(t, skipped, "the skip must be reported")
}

func TestAggregateSectors_UnsupportedRank(t *testing.T) {
	e := newTestEngine(t)
	for _, shape := range [][]int{{62}, {26, 62}, {2, 13, 18, 26, 62}} {
		_, _, err := e.AggregateSectors("real_sector_output", filled(t, 1, shape...))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrUnsupportedRank)
		assert.Contains(t, err.Error(), "real_sector_output")
		assert.Contains(t, err.Error(), "aggregate sectors")
	}

	tagged := []struct {
		shape []int
		axes  []tensor.Dim
	}{
		{[]int{62}, []tensor.Dim{tensor.DimSectorFine}},
		{[]int{62, 26}, []tensor.Dim{tensor.DimSectorFine, tensor.DimCountry}},
	}
	for _, tt := range tagged {
		in, err := filled(t, 1, tt.shape...).WithAxes(tt.axes...)
		require.NoError(t, err)
		_, _, err = e.AggregateSectors("sector_capital_loss", in)
		assert.ErrorIs(t, err, core.ErrUnsupportedRank, "tagged shape %v", tt.shape)
	}
}

func TestAggregateSectors_Tagged(t *testing.T) {
	e := newTestEngine(t)
	in, err := filled(t, 2, 62, 13, 26).WithAxes(tensor.DimSectorFine, tensor.DimTime, tensor.DimCountry)
	require.NoError(t, err)

	out, l, err := e.AggregateSectors("real_sector_output", in)
	require.NoError(t, err)
	assert.Equal(t, layout.SourceTagged, l.Source)
	assert.Equal(t, []int{19, 13, 26}, out.Shape())
	assert.Equal(t, []tensor.Dim{tensor.DimSectorCoarse, tensor.DimTime, tensor.DimCountry}, out.Axes())
	assert.Equal(t, 38.0, out.At(2, 0, 0))

	coarse, err := filled(t, 2, 19, 13, 26).WithAxes(tensor.DimSectorCoarse, tensor.DimTime, tensor.DimCountry)
	require.NoError(t, err)
	_, _, err = e.AggregateSectors("already_coarse", coarse)
	assert.ErrorIs(t, err, core.ErrAxisNotFound)
}

// ============================================================================
// TEST: ComputeComparisons
// ============================================================================

func TestComputeComparisons_ZeroGuard(t *testing.T) {
	e := newTestEngine(t)
	base, scen := dataset.New("baseline"), dataset.New("flood")

	b, _ := tensor.FromData([]int{2, 3}, []float64{0, 0, 0, 100, 50, 0})
	s, _ := tensor.FromData([]int{2, 3}, []float64{5, -7, 0, 110, 25, 3})
	require.NoError(t, base.Put("real_gdp", b))
	require.NoError(t, scen.Put("real_gdp", s))

	cmp, diags := e.ComputeComparisons(base, scen, []string{"real_gdp"})
	assert.Empty(t, diags)

	rel := cmp.Relative["real_gdp"].Data()
	relDiff := cmp.RelativeDiff["real_gdp"].Data()
	abs := cmp.AbsoluteDiff["real_gdp"].Data()
	for i, bv := range b.Data() {
		if bv == 0 {
			assert.Equal(t, 0.0, rel[i], "relative at %d", i)
			assert.Equal(t, 0.0, relDiff[i], "relative difference at %d", i)
		}
		assert.False(t, math.IsNaN(rel[i]) || math.IsInf(rel[i], 0))
		assert.False(t, math.IsNaN(relDiff[i]) || math.IsInf(relDiff[i], 0))
	}
	assert.InDelta(t, 1.1, rel[3], 1e-12)
	assert.InDelta(t, -0.5, relDiff[4], 1e-12)
	assert.Equal(t, []float64{5, -7, 0, 10, -25, 3}, abs)
}

func TestComputeComparisons_ShapeMismatchIsNonFatal(t *testing.T) {
	e := newTestEngine(t)
	base, scen := dataset.New("baseline"), dataset.New("flood")
	require.NoError(t, base.Put("real_gdp", filled(t, 1, 13, 27)))
	require.NoError(t, scen.Put("real_gdp", filled(t, 1, 13, 26)))
	require.NoError(t, base.Put("real_output", filled(t, 1, 13, 26)))
	require.NoError(t, scen.Put("real_output", filled(t, 2, 13, 26)))

	cmp, diags := e.ComputeComparisons(base, scen, []string{"real_gdp", "real_output"})

	for _, m := range []dataset.Vars{cmp.Relative, cmp.AbsoluteDiff, cmp.RelativeDiff} {
		assert.NotContains(t, m, "real_gdp")
		assert.Contains(t, m, "real_output")
	}
	require.Len(t, diags, 1)
	assert.Equal(t, "real_gdp", diags[0].Variable)
	assert.Equal(t, dataset.SeverityWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "real_gdp")
}

func TestComputeComparisons_OneSidedVariables(t *testing.T) {
	e := newTestEngine(t)
	base, scen := dataset.New("baseline"), dataset.New("flood")
	require.NoError(t, base.Put("only_base", filled(t, 1, 2)))
	require.NoError(t, scen.Put("only_scenario", filled(t, 1, 2)))

	cmp, diags := e.ComputeComparisons(base, scen, []string{"only_base", "only_scenario", "nowhere"})
	assert.Empty(t, cmp.Relative)
	require.Len(t, diags, 2)
	assert.Contains(t, diags[0].Message, "baseline")
	assert.Contains(t, diags[1].Message, "flood")
}

// ============================================================================
// TEST: RunFullPipeline
// ============================================================================

func TestRunFullPipeline_EndToEnd(t *testing.T) {
	e := newTestEngine(t)
	base, err := testkit.Constant("baseline", "real_output", 100, 13, 18, 26)
	require.NoError(t, err)
	scen, err := testkit.Constant("earthquake", "real_output", 110, 13, 18, 26)
	require.NoError(t, err)

	res, err := e.RunFullPipeline(context.Background(), base, []*dataset.Dataset{scen}, []string{"real_output"})
	require.NoError(t, err)

	for ds, want := range map[*dataset.Dataset]float64{base: 100, scen: 110} {
		m, ok := ds.Get("real_output_mean")
		require.True(t, ok)
		assert.Equal(t, []int{13, 26}, m.Shape())
		for _, v := range m.Data() {
			assert.Equal(t, want, v)
		}
	}

	assert.Equal(t, []string{"real_output", "real_output_mean"}, res.Tracked)
	require.Len(t, res.Relative, 1)
	for i := range res.Relative[0]["real_output_mean"].Data() {
		assert.InDelta(t, 1.1, res.Relative[0]["real_output_mean"].Data()[i], 1e-12)
		assert.InDelta(t, 10.0, res.AbsoluteDiff[0]["real_output_mean"].Data()[i], 1e-12)
		assert.InDelta(t, 0.1, res.RelativeDiff[0]["real_output_mean"].Data()[i], 1e-12)
	}
}

func TestRunFullPipeline_SectorChain(t *testing.T) {
	e := newTestEngine(t, WithWorkers(4))
	gen := testkit.NewSimulationGenerator(catalogue.Default(), testkit.DefaultSimulationConfig())
	base, err := gen.Baseline("baseline")
	require.NoError(t, err)

	var scenarios []*dataset.Dataset
	for _, name := range []string{"flood", "earthquake", "drought"} {
		sc, err := gen.Scenario(name, base)
		require.NoError(t, err)
		scenarios = append(scenarios, sc)
	}

	res, err := e.RunFullPipeline(context.Background(), base, scenarios, testkit.TrackedVariables())
	require.NoError(t, err)

	for _, name := range []string{"real_sector_output_nace1", "real_sector_output_mean", "real_sector_output_mean_nace1", "euribor_mean"} {
		assert.Contains(t, res.Tracked, name)
		assert.True(t, base.Has(name), "baseline lacks %s", name)
		for _, sc := range scenarios {
			assert.True(t, sc.Has(name), "%s lacks %s", sc.Name(), name)
		}
	}

	agg, _ := base.Get("real_sector_output_mean_nace1")
	assert.Equal(t, []int{13, 26, 19}, agg.Shape())
	raw, _ := base.Get("real_sector_output_nace1")
	assert.Equal(t, []int{13, 18, 26, 19}, raw.Shape())

	require.Len(t, res.RelativeDiff, 3)
	for i := range scenarios {
		assert.Contains(t, res.RelativeDiff[i], "real_sector_output_mean_nace1")
		assert.Contains(t, res.RelativeDiff[i], "real_output_mean")
	}
	assert.Empty(t, res.Warnings())
}

func TestRunFullPipeline_IndexAlignedAndDeterministic(t *testing.T) {
	gen := testkit.NewSimulationGenerator(catalogue.Default(), testkit.DefaultSimulationConfig())
	base, err := gen.Baseline("baseline")
	require.NoError(t, err)
	var scenarios []*dataset.Dataset
	for _, name := range []string{"s0", "s1", "s2", "s3", "s4"} {
		sc, err := gen.Scenario(name, base)
		require.NoError(t, err)
		scenarios = append(scenarios, sc)
	}

	serial, err := newTestEngine(t).RunFullPipeline(context.Background(), base, scenarios, []string{"real_output"})
	require.NoError(t, err)
	parallel, err := newTestEngine(t, WithWorkers(3)).RunFullPipeline(context.Background(), base, scenarios, []string{"real_output"})
	require.NoError(t, err)

	for i := range scenarios {
		want, err := e2eRelDiff(base, scenarios[i], "real_output_mean")
		require.NoError(t, err)
		assert.Equal(t, want.Data(), serial.RelativeDiff[i]["real_output_mean"].Data())
		assert.Equal(t, want.Data(), parallel.RelativeDiff[i]["real_output_mean"].Data())
	}
}

func e2eRelDiff(base, sc *dataset.Dataset, name string) (*tensor.Array, error) {
	b, _ := base.Get(name)
	s, _ := sc.Get(name)
	d, err := tensor.Sub(s, b)
	if err != nil {
		return nil, err
	}
	return tensor.SafeDiv(d, b)
}

func TestRunFullPipeline_AggregationFailureIsContained(t *testing.T) {
	e := newTestEngine(t)
	base, scen := dataset.New("baseline"), dataset.New("flood")
	// rank 1 sector variable cannot be aggregated
	require.NoError(t, base.Put("sector_capital_loss", filled(t, 1, 62)))
	require.NoError(t, scen.Put("sector_capital_loss", filled(t, 2, 62)))
	require.NoError(t, base.Put("real_sector_output", filled(t, 1, 13, 18, 26, 62)))
	require.NoError(t, scen.Put("real_sector_output", filled(t, 2, 13, 18, 26, 62)))

	res, err := e.RunFullPipeline(context.Background(), base, []*dataset.Dataset{scen},
		[]string{"sector_capital_loss", "real_sector_output"})
	require.NoError(t, err)

	assert.False(t, base.Has("sector_capital_loss_nace1"))
	assert.True(t, base.Has("real_sector_output_mean_nace1"))
	assert.Contains(t, res.RelativeDiff[0], "real_sector_output_mean_nace1")
	assert.Contains(t, res.RelativeDiff[0], "sector_capital_loss", "raw variable is still compared")

	var found bool
	for _, d := range res.Warnings() {
		if d.Variable == "sector_capital_loss" && d.Op == "aggregate sectors" {
			found = true
		}
	}
	assert.True(t, found, "aggregation failure must be reported")
}

func TestRunFullPipeline_Cancelled(t *testing.T) {
	e := newTestEngine(t)
	base, _ := testkit.Constant("baseline", "real_output", 1, 13, 18, 26)
	scen, _ := testkit.Constant("flood", "real_output", 1, 13, 18, 26)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RunFullPipeline(ctx, base, []*dataset.Dataset{scen}, []string{"real_output"})
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// TEST: catalogue diagnostics
// ============================================================================

func TestCatalogueDiagnostics(t *testing.T) {
	assert.Empty(t, CatalogueDiagnostics(catalogue.Default()))

	cat, err := catalogue.New(catalogue.Definition{
		Countries:     []string{"AT", "BE", "DE"},
		SectorsFine:   []string{"A01", "B", "Z99", "C10"},
		SectorsCoarse: []string{"A", "B", "C"},
		TimeSteps:     []string{"Q0", "Q1", "Q2", "Q3", "Q4"},
		Experiments:   []string{"E0", "E1"},
	})
	require.NoError(t, err)

	diags := CatalogueDiagnostics(cat)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, dataset.SeverityWarning, d.Severity)
		assert.Equal(t, "check catalogue", d.Op)
	}
	assert.Contains(t, diags[0].Message, "country and sector_coarse both have length 3")
	assert.Contains(t, diags[1].Message, "Z99")
}

func TestRunFullPipeline_ReportsCatalogueDiagnostics(t *testing.T) {
	cat, err := catalogue.Default().WithExperiments(26)
	require.NoError(t, err)
	e := NewEngine(cat, WithLogger(internal.NewWriterLogger(internal.LogLevelError, &bytes.Buffer{})))

	base, _ := testkit.Constant("baseline", "real_gdp", 1, 13, 26)
	scen, _ := testkit.Constant("flood", "real_gdp", 2, 13, 26)
	res, err := e.RunFullPipeline(context.Background(), base, []*dataset.Dataset{scen}, []string{"real_gdp"})
	require.NoError(t, err)

	var found bool
	for _, d := range res.Warnings() {
		if d.Op == "check catalogue" && strings.Contains(d.Message, "country and experiment") {
			found = true
		}
	}
	assert.True(t, found, "ambiguous catalogue lengths must be reported")
}

func TestMissingRequired(t *testing.T) {
	ds, _ := testkit.Constant("baseline", "real_output_mean", 1, 13, 26)
	assert.Equal(t, []string{"real_sector_output_mean_nace1"},
		MissingRequired(ds, []string{"real_output_mean", "real_sector_output_mean_nace1"}))
	assert.Empty(t, MissingRequired(ds, []string{"real_output_mean", "", "  "}), "blank names are not required")
}
