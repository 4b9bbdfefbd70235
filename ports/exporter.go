package ports

import (
	"context"

	"abmviz/domain/core"
	"abmviz/domain/dataset"
)

// ComparisonSet is everything a comparison export needs. The slices are
// index-aligned with Scenarios.
type ComparisonSet struct {
	RunID        core.RunID
	Scenarios    []string
	Variables    []string
	Relative     []dataset.Vars
	AbsoluteDiff []dataset.Vars
	RelativeDiff []dataset.Vars
}

// ComparisonExporter writes a comparison set and returns the written path
type ComparisonExporter interface {
	Export(ctx context.Context, set ComparisonSet) (string, error)
}
