// Package httpapi serves the outcome of the last pipeline run over HTTP
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"abmviz/internal"
	"abmviz/ports"
)

// Server is the read-only HTTP surface
type Server struct {
	router *chi.Mux
	source ports.RunSource
	logger *internal.Logger
}

// NewServer creates a server answering from source
func NewServer(source ports.RunSource, logger *internal.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		source: source,
		logger: logger.OrDefault(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/summary", s.handleSummary)
	s.router.Get("/report", s.handleReport)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.source.Summary(r.Context())
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "no completed run"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	page, ok := s.source.ReportHTML(r.Context())
	if !ok {
		http.Error(w, "no completed run", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		s.logger.Warn("[HTTP] writing report: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
