package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"abmviz/domain/catalogue"
	"abmviz/domain/tensor"
	"abmviz/internal"
	"abmviz/internal/errors"
	"abmviz/internal/layout"
	"abmviz/internal/scale"
	"abmviz/ports"
)

// SummarySheet is the first sheet of every exported workbook
const SummarySheet = "Summary"

// maxSheetName is the sheet name length limit of the xlsx format
const maxSheetName = 31

var dataHeader = []interface{}{"variable", "metric", "time", "experiment", "country", "sector", "value"}

// Exporter writes comparison sets to xlsx workbooks: a summary sheet with
// one row per scenario, variable and metric, followed by one long-format
// sheet per scenario.
type Exporter struct {
	dir    string
	cat    *catalogue.Catalogue
	logger *internal.Logger
}

var _ ports.ComparisonExporter = (*Exporter)(nil)

// NewExporter creates an exporter writing into dir
func NewExporter(dir string, cat *catalogue.Catalogue, logger *internal.Logger) *Exporter {
	return &Exporter{dir: dir, cat: cat, logger: logger.OrDefault()}
}

// FileName returns the workbook name for a run
func FileName(set ports.ComparisonSet) string {
	return fmt.Sprintf("comparisons_%s.xlsx", set.RunID)
}

type metric struct {
	name string
	vars func(i int) map[string]*tensor.Array
}

// Export writes set and returns the workbook path
func (e *Exporter) Export(ctx context.Context, set ports.ComparisonSet) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", errors.ExportError(e.dir, err)
	}
	path := filepath.Join(e.dir, FileName(set))

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return "", errors.ExportError(path, err)
	}

	metrics := []metric{
		{"relative", func(i int) map[string]*tensor.Array { return set.Relative[i] }},
		{"absolute_diff", func(i int) map[string]*tensor.Array { return set.AbsoluteDiff[i] }},
		{"relative_diff", func(i int) map[string]*tensor.Array { return set.RelativeDiff[i] }},
	}

	if err := e.writeSummary(f, set, metrics); err != nil {
		return "", errors.ExportError(path, err)
	}

	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for i, scenario := range set.Scenarios {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sheet := uniqueSheetName(scenario, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return "", errors.ExportError(path, err)
		}
		rows, err := e.writeScenario(f, sheet, set.Variables, i, metrics)
		if err != nil {
			return "", errors.ExportError(path, fmt.Errorf("sheet %s: %w", sheet, err))
		}
		e.logger.Debug("[Excel] sheet %s: %d rows", sheet, rows)
	}

	if err := f.SaveAs(path); err != nil {
		return "", errors.ExportError(path, err)
	}
	e.logger.Info("[Excel] wrote %s (%d scenarios)", path, len(set.Scenarios))
	return path, nil
}

func (e *Exporter) writeSummary(f *excelize.File, set ports.ComparisonSet, metrics []metric) error {
	header := []string{"scenario", "variable", "metric", "min", "max", "mean", "median"}
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SummarySheet, cell, h); err != nil {
			return err
		}
	}

	row := 2
	for i, scenario := range set.Scenarios {
		for _, name := range set.Variables {
			for _, m := range metrics {
				arr, ok := m.vars(i)[name]
				if !ok {
					continue
				}
				s, err := scale.Summarize(arr.Data())
				if err != nil {
					return err
				}
				values := []interface{}{scenario, name, m.name, s.Min, s.Max, s.Mean, s.Median}
				for col, v := range values {
					cell, err := excelize.CoordinatesToCellName(col+1, row)
					if err != nil {
						return err
					}
					if err := f.SetCellValue(SummarySheet, cell, v); err != nil {
						return err
					}
				}
				row++
			}
		}
	}
	return nil
}

func (e *Exporter) writeScenario(f *excelize.File, sheet string, names []string, i int, metrics []metric) (int, error) {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, err
	}
	if err := sw.SetRow("A1", dataHeader); err != nil {
		return 0, err
	}

	row := 2
	for _, name := range names {
		for _, m := range metrics {
			arr, ok := m.vars(i)[name]
			if !ok {
				continue
			}
			l, err := layout.Resolve(arr, e.cat.Lengths())
			if err != nil {
				e.logger.Warn("[Excel] %s %s not exported: %v", name, m.name, err)
				continue
			}
			for flat, v := range arr.Data() {
				labels := e.labels(arr.Shape(), l, flat)
				cell, err := excelize.CoordinatesToCellName(1, row)
				if err != nil {
					return 0, err
				}
				values := []interface{}{name, m.name, labels[0], labels[1], labels[2], labels[3], v}
				if err := sw.SetRow(cell, values); err != nil {
					return 0, err
				}
				row++
			}
		}
	}
	return row - 2, sw.Flush()
}

// labels returns the time, experiment, country and sector labels of the
// element at flat, empty for dimensions the layout does not assign
func (e *Exporter) labels(shape []int, l layout.Layout, flat int) [4]string {
	idx := make([]int, len(shape))
	for ax := len(shape) - 1; ax >= 0; ax-- {
		idx[ax] = flat % shape[ax]
		flat /= shape[ax]
	}

	var out [4]string
	set := func(slot, axis int, d tensor.Dim) {
		if axis != layout.NotFound && axis < len(idx) {
			out[slot] = e.cat.Label(d, idx[axis])
		}
	}
	set(0, l.Time, tensor.DimTime)
	set(1, l.Experiment, tensor.DimExperiment)
	set(2, l.Country, tensor.DimCountry)
	// inferred layouts always call the sector axis fine; aggregated arrays
	// are recognised by length
	sectorDim := l.SectorDim
	if l.Source != layout.SourceTagged && l.Sector != layout.NotFound && shape[l.Sector] == e.cat.Lengths().SectorCoarse {
		sectorDim = tensor.DimSectorCoarse
	}
	set(3, l.Sector, sectorDim)
	return out
}

// uniqueSheetName strips characters xlsx forbids, truncates to the sheet name
// limit and appends a counter on collision
func uniqueSheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, name)
	if clean == "" {
		clean = "scenario"
	}
	base := truncate(clean, maxSheetName)
	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate = truncate(clean, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
