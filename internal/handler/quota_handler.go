package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bgm-radar/internal/quota"
	"bgm-radar/internal/service"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// QuotaHandler reports today's shared quota usage and a collection plan that fits it
type QuotaHandler struct {
	limit  int
	cache  *service.CacheService
	clock  service.Clock
	logger *logger.Logger
}

// QuotaResponse is the body of GET /api/quota/plan
type QuotaResponse struct {
	Status quota.Status `json:"status"`
	Plan   quota.Params `json:"plan"`
}

// NewQuotaHandler creates a new quota handler
func NewQuotaHandler(limit int, cache *service.CacheService, clock service.Clock, logger *logger.Logger) *QuotaHandler {
	return &QuotaHandler{
		limit:  limit,
		cache:  cache,
		clock:  clock,
		logger: logger.Component("quota_handler"),
	}
}

// Plan handles GET /api/quota/plan. The optional remaining parameter overrides the shared counter for planning.
func (h *QuotaHandler) Plan(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	tracker := quota.NewTracker(h.limit, h.logger)
	tracker.Preload(h.cache.QuotaUsed(r.Context(), quota.Day(now)))

	remaining, err := queryInt(r, "remaining", int64(tracker.Remaining()))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if remaining < 0 {
		respondError(w, r, errors.NewValidationError("remaining must not be negative", nil), h.logger)
		return
	}

	respond(w, QuotaResponse{
		Status: tracker.Status(now),
		Plan:   quota.RecommendedParams(int(remaining)),
	}, "", h.logger)
}

// RegisterRoutes registers quota routes with the router
func (h *QuotaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/quota/plan", h.Plan)
}
