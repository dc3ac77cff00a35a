package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"bgm-radar/internal/middleware"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// Response is the envelope of every successful API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

func respond(w http.ResponseWriter, data interface{}, message string, logger *logger.Logger) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Message: message}, logger)
}

func respondError(w http.ResponseWriter, r *http.Request, err error, logger *logger.Logger) {
	middleware.WriteError(w, r, err, logger)
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("Invalid request body", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// queryInt parses an optional integer query parameter. A missing value gives def.
func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("Invalid query parameter", map[string]interface{}{name: raw})
	}
	return v, nil
}
