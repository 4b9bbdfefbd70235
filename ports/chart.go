package ports

import (
	"context"

	"abmviz/domain/tensor"
)

// ChartKind selects what a time-series chart shows
type ChartKind string

const (
	// ChartAbsolute plots baseline and scenario levels
	ChartAbsolute ChartKind = "abs"
	// ChartRelativeDiff plots scenario relative differences against baseline
	ChartRelativeDiff ChartKind = "dif_rel"
)

// Series is one named line source shaped (time, country)
type Series struct {
	Name   string
	Values *tensor.Array
}

// ChartRequest asks for one time-series chart per country
type ChartRequest struct {
	Thing string
	Kind  ChartKind
	// Baseline is drawn first for absolute charts; ignored otherwise
	Baseline *tensor.Array
	Series   []Series
	// YMin and YMax fix the value axis when FixedY is set
	YMin, YMax float64
	FixedY     bool
}

// ChartRenderer draws charts and returns the paths it wrote. Charts whose
// file already exists are reported as skipped rather than redrawn.
type ChartRenderer interface {
	RenderTimeSeries(ctx context.Context, req ChartRequest) (written, skipped []string, err error)
}
