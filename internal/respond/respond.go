// Package respond writes the JSON envelopes shared by all handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, errorType, message string) {
	JSON(w, status, ErrorResponse{
		Success: false,
		Error:   errorType,
		Message: message,
	})
}

// FromError classifies err and writes the matching envelope. Server errors
// keep their message.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	Error(w, status, apperr.Code(err), err.Error())
}

// Decode reads a JSON body into v, answering 400 on failure. It reports
// whether the caller may continue.
func Decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return false
	}
	return true
}
