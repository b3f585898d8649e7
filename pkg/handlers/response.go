// Package handlers exposes the engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
)

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// engineErrorBody is the error shape for engine failures. Only the
// classified kind and safe message ever reach the client.
type engineErrorBody struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	RetryAfter  float64  `json:"retry_after_seconds,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// WriteEngineError maps an engine error to a status code and JSON body.
// Rate limits get a Retry-After header; planner rejections carry their
// suggestions.
func WriteEngineError(w http.ResponseWriter, err error) error {
	var ee *apperrors.EngineError
	if !errors.As(err, &ee) {
		return ErrorResponse(w, http.StatusInternalServerError, string(apperrors.KindInternal), "internal error")
	}

	status := http.StatusInternalServerError
	switch ee.Kind {
	case apperrors.KindRateLimited:
		status = http.StatusTooManyRequests
		seconds := int(ee.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	case apperrors.KindNoMatch, apperrors.KindTooComplex:
		status = http.StatusBadRequest
	case apperrors.KindExecutionTimeout:
		status = http.StatusGatewayTimeout
	}

	body := engineErrorBody{
		Error:       string(ee.Kind),
		Message:     ee.Message,
		Suggestions: ee.Suggestions,
	}
	if ee.Kind == apperrors.KindRateLimited {
		body.RetryAfter = ee.RetryAfter.Seconds()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
