// Package http exposes a small read-only status surface for operators.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tunedrop/internal/domain"
	"tunedrop/internal/worker"
)

// StatsSource reports the most recently completed pass.
type StatsSource interface {
	LastStats() (worker.Stats, bool)
}

// Server is the HTTP adapter for health and status probes.
type Server struct {
	stats   StatsSource
	history domain.HistoryStore
	mux     *http.ServeMux
	server  *http.Server
	started time.Time
}

// NewServer creates a new HTTP server.
func NewServer(stats StatsSource, history domain.HistoryStore, addr string) *Server {
	s := &Server{
		stats:   stats,
		history: history,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
}

// statusResponse is the JSON response for GET /status.
type statusResponse struct {
	Uptime   string                    `json:"uptime"`
	History  map[domain.SourceKind]int `json:"history"`
	LastRun  *worker.Stats             `json:"last_run,omitempty"`
	HasStats bool                      `json:"has_run"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
		History: s.history.Sizes(),
	}
	if stats, ok := s.stats.LastStats(); ok {
		resp.LastRun = &stats
		resp.HasStats = true
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
