package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abmviz/internal"
)

type fakeSource struct {
	summary any
	html    []byte
}

func (f *fakeSource) Summary(ctx context.Context) (any, bool) { return f.summary, f.summary != nil }

func (f *fakeSource) ReportHTML(ctx context.Context) ([]byte, bool) { return f.html, f.html != nil }

func newTestServer(src *fakeSource) *Server {
	return NewServer(src, internal.NewWriterLogger(internal.LogLevelError, &bytes.Buffer{}))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(&fakeSource{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestNoRunYet(t *testing.T) {
	srv := newTestServer(&fakeSource{})
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/summary").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/report").Code)
}

func TestSummaryAndReport(t *testing.T) {
	srv := newTestServer(&fakeSource{
		summary: map[string]interface{}{"run_id": "abc", "scenarios": []string{"flood"}},
		html:    []byte("<html><body>run abc</body></html>"),
	})

	rec := get(t, srv, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "abc", body["run_id"])

	rec = get(t, srv, "/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "run abc")
}

func TestUnknownRoute(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, newTestServer(&fakeSource{}), "/api/other").Code)
	rec := httptest.NewRecorder()
	newTestServer(&fakeSource{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
