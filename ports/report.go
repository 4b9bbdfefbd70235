package ports

import "context"

// RunSource provides read-only access to the last completed run for the HTTP
// surface. ok is false until a run has completed.
type RunSource interface {
	Summary(ctx context.Context) (summary any, ok bool)
	ReportHTML(ctx context.Context) (html []byte, ok bool)
}
