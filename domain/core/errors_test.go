package core

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRankError(t *testing.T) {
	err := NewRankError("aggregate sectors", "real_sector_output", []int{62})

	if !errors.Is(err, ErrUnsupportedRank) {
		t.Fatalf("Expected ErrUnsupportedRank, got %v", err)
	}
	if !IsStructuralError(err) {
		t.Error("Rank errors must be structural")
	}
	for _, part := range []string{"aggregate sectors", "real_sector_output", "[62]"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("Expected %q in error message %q", part, err.Error())
		}
	}
}

func TestErrorClassification(t *testing.T) {
	mismatch := NewShapeMismatchError("real_gdp", []int{13, 27}, []int{13, 26})
	if !IsShapeMismatch(mismatch) {
		t.Error("Expected shape mismatch classification")
	}
	if IsStructuralError(mismatch) {
		t.Error("Shape mismatches are recoverable, not structural")
	}

	missing := NewVariableNotFoundError("baseline", "real_gdp")
	if !IsNotFoundError(missing) {
		t.Error("Expected not-found classification")
	}
}
