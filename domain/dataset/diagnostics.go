package dataset

import "fmt"

// Severity of a diagnostic
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic records a skipped computation or a best-effort fallback
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Op       string   `json:"op"`
	Dataset  string   `json:"dataset,omitempty"`
	Variable string   `json:"variable,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("[%s] %s", d.Severity, d.Op)
	if d.Dataset != "" {
		s += " " + d.Dataset
	}
	if d.Variable != "" {
		s += " " + d.Variable
	}
	return s + ": " + d.Message
}
