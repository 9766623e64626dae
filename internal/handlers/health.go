package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/database/postgres"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 5 * time.Second

// HealthStatus is the reported state of a component.
type HealthStatus string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy indicates the component is unreachable.
	StatusUnhealthy HealthStatus = "unhealthy"
	// StatusDegraded indicates the service runs with reduced capability.
	StatusDegraded HealthStatus = "degraded"
)

// ComponentHealth describes one dependency's state.
type ComponentHealth struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	ResponseTime string       `json:"response_time,omitempty"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

// ReadinessResponse is the /health/ready payload.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthHandler exposes the health, liveness, and readiness probes.
type HealthHandler struct {
	config    *config.Config
	store     cache.Store
	db        *postgres.Manager
	logger    *logrus.Logger
	startTime time.Time
}

// NewHealthHandler creates the health probe handler. The database manager
// may be nil when no database is configured.
func NewHealthHandler(cfg *config.Config, store cache.Store, db *postgres.Manager, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		config:    cfg,
		store:     store,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Health reports the overall service health with per-component detail.
//
//	GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := map[string]ComponentHealth{
		"cache":    h.checkCache(ctx),
		"database": h.checkDatabase(ctx),
	}

	overall := StatusHealthy
	status := http.StatusOK
	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
			status = http.StatusServiceUnavailable
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}

	writeJSONStatus(w, h.logger, status, HealthResponse{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Components: components,
	})
}

// Liveness reports that the process is running.
//
//	GET /health/live
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports whether the service can take traffic. The cache must
// be reachable; the database is optional and only degrades readiness
// detail, never gates it.
//
//	GET /health/ready
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := map[string]ComponentHealth{
		"cache":    h.checkCache(ctx),
		"database": h.checkDatabase(ctx),
	}

	ready := components["cache"].Status != StatusUnhealthy
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	writeJSONStatus(w, h.logger, status, ReadinessResponse{
		Ready:      ready,
		Timestamp:  time.Now().UTC(),
		Components: components,
	})
}

func (h *HealthHandler) checkCache(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: err.Error(),
		}
	}

	component := ComponentHealth{
		Status:       StatusHealthy,
		ResponseTime: time.Since(start).String(),
	}
	if !h.store.IsAvailable() {
		component.Status = StatusDegraded
		component.Message = "caching disabled"
	}
	return component
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ComponentHealth {
	if h.db == nil || !h.config.IsDatabaseConfigured() {
		return ComponentHealth{
			Status:  StatusDegraded,
			Message: "database not configured",
		}
	}

	start := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		// Persistence is optional, so a down database degrades rather
		// than fails the service.
		return ComponentHealth{
			Status:  StatusDegraded,
			Message: err.Error(),
		}
	}

	return ComponentHealth{
		Status:       StatusHealthy,
		ResponseTime: time.Since(start).String(),
	}
}
