// Package health exposes the layer's observability over HTTP: a coarse
// health verdict derived from active alerts, the full dashboard view, and
// the prometheus scrape endpoint.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opsdesk/relay/internal/metrics"
)

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	collector *metrics.Collector
	server    *http.Server
}

// NewServer creates a new health server.
func NewServer(collector *metrics.Collector, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		collector: collector,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", collector.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dashboard := s.collector.GetDashboardMetrics()

	w.Header().Set("Content-Type", "application/json")
	if dashboard.Health == "critical" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(map[string]string{"status": dashboard.Health})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	dashboard := s.collector.GetDashboardMetrics()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dashboard)
}
