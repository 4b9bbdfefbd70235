// Package report writes the human-readable summary of a pipeline run as
// markdown and renders it to a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"abmviz/domain/dataset"
	"abmviz/internal/scale"
)

// Summary describes one completed run
type Summary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Baseline  string        `json:"baseline"`
	Scenarios []string      `json:"scenarios"`
	// Failed lists scenario files that could not be loaded
	Failed   []string     `json:"failed,omitempty"`
	Tracked  []string     `json:"tracked"`
	Missing  []string     `json:"missing_required,omitempty"`
	Ranges   scale.Ranges `json:"ranges"`
	Thing    string       `json:"thing"`
	Sector   string       `json:"sector_thing"`
	Workbook string       `json:"workbook,omitempty"`
	Charts   int          `json:"charts_written"`
	Skipped  int          `json:"charts_skipped"`

	DiagnosticCount int                  `json:"diagnostic_count"`
	Diagnostics     []dataset.Diagnostic `json:"diagnostics,omitempty"`
}

// Warnings counts warning diagnostics
func (s Summary) Warnings() int {
	n := 0
	for _, d := range s.Diagnostics {
		if d.Severity == dataset.SeverityWarning {
			n++
		}
	}
	return n
}

// Markdown renders s as a markdown document
func Markdown(s Summary) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "Started %s, took %s.\n\n", s.StartedAt.UTC().Format(time.RFC3339), s.Duration.Round(time.Millisecond))

	b.WriteString("## Inputs\n\n")
	b.WriteString("| Role | Dataset |\n|---|---|\n")
	fmt.Fprintf(&b, "| baseline | %s |\n", cell(s.Baseline))
	for _, sc := range s.Scenarios {
		fmt.Fprintf(&b, "| scenario | %s |\n", cell(sc))
	}
	for _, f := range s.Failed {
		fmt.Fprintf(&b, "| not loaded | %s |\n", cell(f))
	}
	b.WriteString("\n")

	b.WriteString("## Tracked variables\n\n")
	for _, name := range s.Tracked {
		marker := ""
		if dataset.IsDerived(name) {
			marker = " (derived)"
		}
		fmt.Fprintf(&b, "- `%s`%s\n", name, marker)
	}
	b.WriteString("\n")

	if len(s.Missing) > 0 {
		b.WriteString("## Missing required variables\n\n")
		for _, name := range s.Missing {
			fmt.Fprintf(&b, "- **%s**: dependent charts were not drawn\n", name)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Scale ranges\n\n")
	b.WriteString("| Variable | Min | Max |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %.4g | %.4g |\n", cell(s.Thing), s.Ranges.Thing.Min, s.Ranges.Thing.Max)
	fmt.Fprintf(&b, "| %s | %.4g | %.4g |\n\n", cell(s.Sector), s.Ranges.Sector.Min, s.Ranges.Sector.Max)

	b.WriteString("## Outputs\n\n")
	if s.Workbook != "" {
		fmt.Fprintf(&b, "- workbook: `%s`\n", s.Workbook)
	}
	fmt.Fprintf(&b, "- charts: %d written, %d already present\n\n", s.Charts, s.Skipped)

	fmt.Fprintf(&b, "## Diagnostics (%d, %d warnings)\n\n", s.DiagnosticCount, s.Warnings())
	if len(s.Diagnostics) == 0 {
		b.WriteString("None.\n")
		return b.Bytes()
	}
	b.WriteString("| Severity | Operation | Dataset | Variable | Message |\n|---|---|---|---|---|\n")
	for _, d := range s.Diagnostics {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", d.Severity, cell(d.Op), cell(d.Dataset), cell(d.Variable), cell(d.Message))
	}
	return b.Bytes()
}

// HTML renders markdown into a complete HTML page
func HTML(md []byte, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})
	return markdown.ToHTML(md, p, renderer)
}

// cell escapes text for a markdown table cell
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
