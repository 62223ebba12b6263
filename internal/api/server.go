// Package api provides the HTTP server for RateHive.
// It exposes the award REST API, the badge catalog admin API, and
// operational endpoints (/health, /metrics).
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ratehive/ratehive/internal/app/award"
	"github.com/ratehive/ratehive/internal/domain"
	"github.com/ratehive/ratehive/internal/health"
)

// Server is the RateHive HTTP API server.
type Server struct {
	coord          *award.Coordinator
	store          domain.Store
	checker        *health.Checker
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(coord *award.Coordinator, store domain.Store) *Server {
	return &Server{coord: coord, store: store}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthChecker sets the checker backing /health.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/awards", s.handleAward)
		r.Get("/users/{id}/stats", s.handleUserStats)
		r.Get("/users/{id}/badges", s.handleUserBadges)

		r.Get("/badges", s.handleListBadges)
		r.Post("/badges", s.handleCreateBadge)
		r.Put("/badges/{id}", s.handleUpdateBadge)
		r.Delete("/badges/{id}", s.handleDeleteBadge)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := http.StatusOK
	overall := "ok"
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": s.checker.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a domain error to an HTTP status. Retryable
// failures get 503 with a Retry-After hint so clients back off and
// resubmit; final rejections get 4xx.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownAction),
		errors.Is(err, domain.ErrInvalidPoints),
		errors.Is(err, domain.ErrUnknownBadgeCondition),
		errors.Is(err, domain.ErrInvalidThreshold),
		errors.Is(err, domain.ErrUserRequired):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrBadgeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBadgeExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}
