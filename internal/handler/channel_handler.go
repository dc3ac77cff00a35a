package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/repository"
	"bgm-radar/internal/service"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// ChannelHandler serves the channel catalogue and its triage operations
type ChannelHandler struct {
	catalog   service.ChannelCatalog
	tracker   service.ChannelTracker
	intake    service.ChannelIntake
	admission filter.AdmissionConfig
	logger    *logger.Logger
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(catalog service.ChannelCatalog, tracker service.ChannelTracker, logger *logger.Logger) *ChannelHandler {
	return &ChannelHandler{
		catalog: catalog,
		tracker: tracker,
		logger:  logger.Component("channel_handler"),
	}
}

// WithIntake enables the manual add and validate routes. Channels are judged against admission.
func (h *ChannelHandler) WithIntake(intake service.ChannelIntake, admission filter.AdmissionConfig) *ChannelHandler {
	h.intake = intake
	h.admission = admission
	return h
}

// IntakeRequest is the body of POST /api/channels and POST /api/channels/validate
type IntakeRequest struct {
	Channel string `json:"channel"`
	Force   bool   `json:"force,omitempty"`
}

// StatusRequest is the body of PUT /api/channels/{id}/status
type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// BulkStatusRequest is the body of POST /api/channels/status
type BulkStatusRequest struct {
	Changes []BulkStatusItem `json:"changes"`
}

// BulkStatusItem is one entry of a bulk status update
type BulkStatusItem struct {
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// StatsResponse bundles catalogue and triage counters
type StatsResponse struct {
	Channels *domain.ChannelStats `json:"channels"`
	Status   *domain.StatusStats  `json:"status"`
}

// List handles GET /api/channels
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	lf, err := parseListFilter(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	channels, err := h.catalog.List(r.Context(), lf)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, channels, "", h.logger)
}

// Get handles GET /api/channels/{id}
func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, rec, "", h.logger)
}

// UpdateStatus handles PUT /api/channels/{id}/status
func (h *ChannelHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	rec, err := h.catalog.UpdateStatus(r.Context(), domain.StatusChange{
		ChannelID: chi.URLParam(r, "id"),
		Status:    status,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, rec, "Status updated", h.logger)
}

// BulkUpdateStatus handles POST /api/channels/status
func (h *ChannelHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	changes := make([]domain.StatusChange, 0, len(req.Changes))
	for _, item := range req.Changes {
		status, err := parseStatus(item.Status)
		if err != nil {
			respondError(w, r, err, h.logger)
			return
		}
		changes = append(changes, domain.StatusChange{ChannelID: item.ChannelID, Status: status, Reason: item.Reason})
	}

	result, err := h.catalog.BulkUpdateStatus(r.Context(), changes)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, result, "", h.logger)
}

// Add handles POST /api/channels
func (h *ChannelHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req IntakeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	result, err := h.intake.AddChannel(r.Context(), req.Channel, service.IntakeOptions{
		Admission: h.admission,
		Force:     req.Force,
	})
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	message := "Channel not admitted"
	switch {
	case result.Saved:
		message = "Channel added"
	case result.AlreadyStored:
		message = "Channel already stored"
	}
	respond(w, result, message, h.logger)
}

// Validate handles POST /api/channels/validate
func (h *ChannelHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req IntakeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	result, err := h.intake.ValidateChannel(r.Context(), req.Channel, h.admission)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, result, "", h.logger)
}

// Track handles POST /api/channels/{id}/track
func (h *ChannelHandler) Track(w http.ResponseWriter, r *http.Request) {
	snap, err := h.tracker.Enroll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, snap, "Channel enrolled for tracking", h.logger)
}

// History handles GET /api/channels/{id}/history
func (h *ChannelHandler) History(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultHistoryDays)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	snaps, err := h.tracker.History(r.Context(), chi.URLParam(r, "id"), int(days))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, snaps, "", h.logger)
}

// Trend handles GET /api/channels/{id}/trend
func (h *ChannelHandler) Trend(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultHistoryDays)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	trend, err := h.tracker.Trend(r.Context(), chi.URLParam(r, "id"), int(days))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, trend, "", h.logger)
}

// Stats handles GET /api/stats
func (h *ChannelHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	status, err := h.catalog.StatusStats(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respond(w, StatsResponse{Channels: stats, Status: status}, "", h.logger)
}

// RegisterRoutes registers channel routes. Mutating routes are wrapped with protect when it is not nil.
func (h *ChannelHandler) RegisterRoutes(r chi.Router, protect func(http.Handler) http.Handler) {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/stats", h.Stats)
	r.Route("/channels", func(r chi.Router) {
		r.Get("/", h.List)
		r.With(protect).Post("/status", h.BulkUpdateStatus)
		if h.intake != nil {
			r.With(protect).Post("/", h.Add)
			r.With(protect).Post("/validate", h.Validate)
		}

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Get("/history", h.History)
			r.Get("/trend", h.Trend)
			r.With(protect).Put("/status", h.UpdateStatus)
			r.With(protect).Post("/track", h.Track)
		})
	})
}

func parseStatus(raw string) (domain.ChannelStatus, error) {
	status, err := domain.ParseChannelStatus(raw)
	if err != nil {
		return domain.StatusUnset, errors.NewValidationError("Invalid channel status", map[string]interface{}{"status": raw})
	}
	return status, nil
}

func parseListFilter(r *http.Request) (repository.ListFilter, error) {
	var lf repository.ListFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return lf, err
		}
		lf.Status = &status
	}

	var err error
	if lf.MinSubscribers, err = queryInt(r, "min_subscribers", 0); err != nil {
		return lf, err
	}
	if lf.MaxSubscribers, err = queryInt(r, "max_subscribers", 0); err != nil {
		return lf, err
	}
	growth, err := queryInt(r, "min_growth_rate", 0)
	if err != nil {
		return lf, err
	}
	lf.MinGrowthRate = int(growth)
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return lf, err
	}
	lf.Limit = int(limit)
	lf.OrderBy = q.Get("order_by")
	return lf, nil
}
