package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Structural errors abort the operation that raised them
	ErrUnsupportedRank = errors.New("unsupported array rank")
	ErrInvalidShape    = errors.New("invalid array shape")
	ErrInvalidCatalog  = errors.New("invalid dimension catalogue")

	// Recoverable errors are turned into diagnostics by the pipeline
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrAxisNotFound        = errors.New("axis not found")
	ErrVariableNotFound    = errors.New("variable not found")
	ErrIncompatibleDerived = errors.New("derived variable already present with incompatible shape")
)

// NewRankError reports an operation that cannot run on an array of the given shape.
func NewRankError(op, variable string, shape []int) error {
	return fmt.Errorf("%s: variable %q: %w %d (shape %v)", op, variable, ErrUnsupportedRank, len(shape), shape)
}

func NewShapeMismatchError(variable string, want, got []int) error {
	return fmt.Errorf("%w for %s: base %v, scenario %v", ErrShapeMismatch, variable, want, got)
}

func NewVariableNotFoundError(dataset, variable string) error {
	return fmt.Errorf("%w: %s in dataset %s", ErrVariableNotFound, variable, dataset)
}

func NewCatalogError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, reason)
}

// Error checking helpers
func IsStructuralError(err error) bool {
	return errors.Is(err, ErrUnsupportedRank) ||
		errors.Is(err, ErrInvalidShape) ||
		errors.Is(err, ErrInvalidCatalog)
}

func IsShapeMismatch(err error) bool {
	return errors.Is(err, ErrShapeMismatch) || errors.Is(err, ErrIncompatibleDerived)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrVariableNotFound) || errors.Is(err, ErrAxisNotFound)
}
