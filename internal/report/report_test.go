package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"abmviz/domain/dataset"
	"abmviz/internal/scale"
)

func sampleSummary() Summary {
	diags := []dataset.Diagnostic{
		{Severity: dataset.SeverityWarning, Op: "compute comparisons", Dataset: "flood", Variable: "real_gdp", Message: "shape mismatch | base [13 27]"},
		{Severity: dataset.SeverityInfo, Op: "compute means", Dataset: "baseline", Variable: "euribor_scalar", Message: "skipped"},
	}
	return Summary{
		RunID:           "0190c5f0-0000-7000-8000-000000000000",
		StartedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:        1500 * time.Millisecond,
		Baseline:        "S0_Sc10000_C0_2023Q4",
		Scenarios:       []string{"flood"},
		Failed:          []string{"S3_missing"},
		Tracked:         []string{"real_output", "real_output_mean"},
		Missing:         []string{"real_sector_output_mean_nace1"},
		Ranges:          scale.Ranges{Thing: scale.Range{Min: -0.05, Max: 0.05}},
		Thing:           "real_output_mean",
		Sector:          "real_sector_output_mean_nace1",
		Charts:          26,
		DiagnosticCount: len(diags),
		Diagnostics:     diags,
	}
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown(sampleSummary()))

	assert.Contains(t, md, "# Run 0190c5f0-0000-7000-8000-000000000000")
	assert.Contains(t, md, "| baseline | S0_Sc10000_C0_2023Q4 |")
	assert.Contains(t, md, "| not loaded | S3_missing |")
	assert.Contains(t, md, "- `real_output_mean` (derived)")
	assert.Contains(t, md, "**real_sector_output_mean_nace1**")
	assert.Contains(t, md, "## Diagnostics (2, 1 warnings)")
	assert.Contains(t, md, `shape mismatch \| base`, "pipes in messages are escaped")
	assert.Contains(t, md, "took 1.5s")
}

func TestMarkdown_NoDiagnostics(t *testing.T) {
	s := sampleSummary()
	s.Diagnostics, s.DiagnosticCount, s.Missing = nil, 0, nil
	md := string(Markdown(s))
	assert.Contains(t, md, "None.")
	assert.NotContains(t, md, "Missing required")
}

func TestHTML(t *testing.T) {
	page := string(HTML(Markdown(sampleSummary()), "abmviz run"))
	assert.True(t, strings.Contains(page, "<html"), "complete page")
	assert.Contains(t, page, "<title>abmviz run</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "real_gdp")
}
