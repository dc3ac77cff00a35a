package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"bgm-radar/internal/service"
	"bgm-radar/pkg/logger"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check requests
type HealthHandler struct {
	checks  map[string]HealthCheck
	version string
	clock   service.Clock
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler. Nil checks are ignored.
func NewHealthHandler(checks map[string]HealthCheck, version string, clock service.Clock, logger *logger.Logger) *HealthHandler {
	active := make(map[string]HealthCheck, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &HealthHandler{
		checks:  active,
		version: version,
		clock:   clock,
		logger:  logger.Component("health_handler"),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components,omitempty"`
}

// Check handles GET /health. Any failing component turns the response into a 503.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  h.clock().UTC(),
		Version:    h.version,
		Service:    "bgm-radar",
		Components: make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WithError(err).WithField("component", name).Warn("Health check failed")
			response.Components[name] = "unhealthy"
			response.Status = "degraded"
			continue
		}
		response.Components[name] = "healthy"
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response, h.logger)
}
