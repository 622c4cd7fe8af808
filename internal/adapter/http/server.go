// Package http exposes the service's operational and read-only directory
// endpoints: liveness, readiness, Prometheus metrics, the provider listing,
// and nearest-provider queries.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/spatial"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Directory is the read side of the provider collection.
type Directory interface {
	List() []domain.ProviderRecord
}

// Server exposes health, readiness, metrics, and directory HTTP endpoints.
type Server struct {
	httpServer *http.Server
	directory  Directory
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /providers, and /providers/nearest routes.
func NewServer(addr string, ready ReadinessChecker, directory Directory, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		directory: directory,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /providers", s.handleList)
	mux.HandleFunc("GET /providers/nearest", s.handleNearest)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	records := s.directory.List()
	if records == nil {
		records = []domain.ProviderRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleNearest answers ?lat=&lon=&limit= with the closest resolved
// providers. The index is rebuilt per request; directory sizes here make
// that cheaper than keeping one coherent with the mirror.
func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon are required numbers"})
		return
	}
	origin := domain.Coordinates{Lat: lat, Lon: lon}
	if !origin.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon must name a real location"})
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	idx, err := spatial.NewIndex(s.directory.List())
	if err != nil {
		s.logger.Error("build spatial index failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "spatial index unavailable"})
		return
	}
	matches, err := idx.Nearest(origin, limit)
	if err != nil {
		s.logger.Error("nearest query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "nearest query failed"})
		return
	}

	type entry struct {
		domain.ProviderRecord
		DistanceMeters float64 `json:"distanceMeters"`
	}
	out := make([]entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entry{ProviderRecord: m.Record, DistanceMeters: m.Distance})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
