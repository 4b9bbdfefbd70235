// Package chart renders per-country time-series charts of (time, country)
// variables with gonum/plot.
package chart

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"abmviz/domain/catalogue"
	"abmviz/domain/tensor"
	"abmviz/internal"
	"abmviz/internal/errors"
	"abmviz/internal/layout"
	"abmviz/ports"
)

// Renderer writes PNG charts below dir/timeseries
type Renderer struct {
	dir    string
	cat    *catalogue.Catalogue
	logger *internal.Logger
	width  vg.Length
	height vg.Length
}

var _ ports.ChartRenderer = (*Renderer)(nil)

// NewRenderer creates a renderer writing into dir
func NewRenderer(dir string, cat *catalogue.Catalogue, logger *internal.Logger) *Renderer {
	return &Renderer{
		dir:    dir,
		cat:    cat,
		logger: logger.OrDefault(),
		width:  5 * vg.Inch,
		height: 4 * vg.Inch,
	}
}

// ChartDir returns the directory holding the charts of one request
func (r *Renderer) ChartDir(thing string, kind ports.ChartKind) string {
	return filepath.Join(r.dir, "timeseries", fmt.Sprintf("%s_as_%s", thing, kind))
}

// RenderTimeSeries draws one chart per catalogue country. Existing files are
// left untouched and returned as skipped.
func (r *Renderer) RenderTimeSeries(ctx context.Context, req ports.ChartRequest) ([]string, []string, error) {
	dir := r.ChartDir(req.Thing, req.Kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, errors.RenderError(dir, err)
	}

	sources := req.Series
	if req.Kind == ports.ChartAbsolute && req.Baseline != nil {
		sources = append([]ports.Series{{Name: "Baseline", Values: req.Baseline}}, sources...)
	}
	if len(sources) == 0 {
		return nil, nil, errors.RenderError(req.Thing, fmt.Errorf("no series to draw"))
	}

	axes := make([]layout.Layout, len(sources))
	for i, s := range sources {
		l, err := r.timeCountry(s.Values)
		if err != nil {
			return nil, nil, errors.RenderError(req.Thing, fmt.Errorf("series %s: %w", s.Name, err))
		}
		axes[i] = l
	}

	var written, skipped []string
	for c, code := range r.cat.Countries() {
		if err := ctx.Err(); err != nil {
			return written, skipped, err
		}
		path := filepath.Join(dir, code+".png")
		if _, err := os.Stat(path); err == nil {
			r.logger.Debug("[Plot] %s exists, skipping", path)
			skipped = append(skipped, path)
			continue
		}

		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s (%s)", code, req.Kind)
		p.X.Label.Text = "Quarter"
		p.Y.Label.Text = req.Thing
		p.Add(plotter.NewGrid())

		for i, s := range sources {
			line, err := plotter.NewLine(column(s.Values, axes[i], c))
			if err != nil {
				return written, skipped, errors.RenderError(path, err)
			}
			line.Width = vg.Points(1.5)
			if s.Name == "Baseline" && req.Kind == ports.ChartAbsolute {
				line.Color = color.Black
			} else {
				line.Color = plotutil.Color(i)
				line.Dashes = plotutil.Dashes(i)
			}
			p.Add(line)
			p.Legend.Add(s.Name, line)
		}
		p.Legend.Top = true

		if req.FixedY && req.YMax > req.YMin {
			p.Y.Min, p.Y.Max = req.YMin, req.YMax
		}

		if err := p.Save(r.width, r.height, path); err != nil {
			return written, skipped, errors.RenderError(path, err)
		}
		written = append(written, path)
	}
	r.logger.Info("[Plot] %s as %s: %d written, %d skipped", req.Thing, req.Kind, len(written), len(skipped))
	return written, skipped, nil
}

// timeCountry resolves a rank-2 array into its time and country axes
func (r *Renderer) timeCountry(arr *tensor.Array) (layout.Layout, error) {
	if arr == nil {
		return layout.Layout{}, fmt.Errorf("missing array")
	}
	if arr.Rank() != 2 {
		return layout.Layout{}, fmt.Errorf("need a (time, country) array, got shape %v", arr.Shape())
	}
	l, err := layout.Resolve(arr, r.cat.Lengths())
	if err != nil {
		return layout.Layout{}, err
	}
	if l.Time == layout.NotFound || l.Country == layout.NotFound {
		return layout.Layout{}, fmt.Errorf("no time and country axes in %v", arr)
	}
	if n := arr.Shape()[l.Country]; n < r.cat.Lengths().Country {
		return layout.Layout{}, fmt.Errorf("country axis has %d entries, catalogue has %d", n, r.cat.Lengths().Country)
	}
	return l, nil
}

// column extracts the time series of one country
func column(arr *tensor.Array, l layout.Layout, country int) plotter.XYs {
	n := arr.Shape()[l.Time]
	pts := make(plotter.XYs, n)
	idx := make([]int, 2)
	for t := 0; t < n; t++ {
		idx[l.Time], idx[l.Country] = t, country
		pts[t].X = float64(t)
		pts[t].Y = arr.At(idx...)
	}
	return pts
}
