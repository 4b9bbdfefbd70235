package ports

import (
	"context"

	"abmviz/domain/dataset"
)

// DatasetLoader reads simulation output datasets by name
type DatasetLoader interface {
	Load(ctx context.Context, name string) (*dataset.Dataset, error)
	// Peek lists the variables of a dataset with their shapes without
	// reading array data
	Peek(ctx context.Context, name string) ([]VariableInfo, error)
}

// DatasetWriter persists a dataset under its name
type DatasetWriter interface {
	Save(ctx context.Context, ds *dataset.Dataset) error
}

// VariableInfo describes one stored variable
type VariableInfo struct {
	Name  string   `json:"name"`
	Shape []int    `json:"shape"`
	Axes  []string `json:"axes,omitempty"`
}
