// Package handler adapts HTTP requests to the service layer.
//
// Handlers decode the request, call one service method and encode the
// answer. Every error body has the same shape:
//
//	{"error": "not_found", "message": "session not found with id abc123"}
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-runner/internal/apperror"
)

// ErrorResponse is the error body returned by every API endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends data with the given status. Headers must be set before the
// status is written, so callers add their own headers first.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status. Anything that is not an
// *apperror.AppError becomes a generic 500 so internal details never leak.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
	}

	writeJSON(w, status, ErrorResponse{
		Error:   apperror.Code(err),
		Message: appErr.Message,
	})
}

// decodeJSON reads a JSON body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return false
	}
	return true
}
