// Package handlers implements the HTTP endpoints: the OAuth login flow,
// demo-mode catalog lookups, the authenticated listening endpoints, and the
// health and metrics surface. Every response body is JSON; errors use the
// shared envelope.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/constants"
	"github.com/Luuchoh/SpotifyScope/internal/models"
)

const (
	defaultItemLimit = 20
	maxItemLimit     = 50
)

// writeJSON renders a 200 response with a JSON body.
func writeJSON(w http.ResponseWriter, logger *logrus.Logger, payload any) {
	writeJSONStatus(w, logger, http.StatusOK, payload)
}

// writeJSONStatus renders a JSON body with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, logger *logrus.Logger, status int, payload any) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("Failed to encode response body")
	}
}

// writeError renders the error envelope. Upstream detail is stripped
// outside development mode.
func writeError(w http.ResponseWriter, logger *logrus.Logger, err error, development bool) {
	apiErr := models.AsAPIError(err)
	if !development && apiErr.Details != "" {
		stripped := *apiErr
		stripped.Details = ""
		apiErr = &stripped
	}

	writeJSONStatus(w, logger, apiErr.StatusCode, apiErr)
}

// parseTimeRange reads the time_range query parameter, defaulting to the
// medium window.
func parseTimeRange(r *http.Request) (models.TimeRange, error) {
	raw := r.URL.Query().Get("time_range")
	if raw == "" {
		return models.TimeRangeMedium, nil
	}

	timeRange := models.TimeRange(raw)
	switch timeRange {
	case models.TimeRangeShort, models.TimeRangeMedium, models.TimeRangeLong:
		return timeRange, nil
	}
	return "", models.NewValidationError("time_range must be one of short_term, medium_term, long_term")
}

// parseLimit reads the limit query parameter, bounded to [1, 50].
func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxItemLimit {
		return 0, models.NewValidationError("limit must be an integer between 1 and " + strconv.Itoa(maxItemLimit))
	}
	return limit, nil
}
