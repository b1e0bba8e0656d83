package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "unauthorized", "message": "You must be logged in to view tasks"}
//
// The frontend can always parse errors the same way, whatever the status.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/taskboard/internal/apperror"
)

// maxBodyBytes bounds procedure payloads. Task payloads are tiny.
const maxBodyBytes = 64 << 10

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable error type, e.g. "validation_error"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status MUST be set before the body: once Encode writes, the
// headers are on the wire and later changes are ignored. A nil data is
// written as JSON null, which is how absent results are reported.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError maps a domain error to an HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	ErrUnauthorized → 401 unauthorized
//	ErrValidation   → 400 validation_error
//	ErrNotFound     → 404 not_found
//	ErrUnavailable  → 503 unavailable
//	anything else   → 500 internal_error
//
// errors.Is walks the whole chain, so a service error wrapped with
// fmt.Errorf("creating task: %w", ...) still maps correctly.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable // 503
			errorType = "unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error: never expose internals (SQL, paths) to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst. Malformed or oversized
// bodies and trailing data come back as validation errors. Keys dst does not
// declare are ignored, so clients cannot set fields like userId or completed
// on create, but sending them is not an error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var timeErr *time.ParseError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field,
				fmt.Sprintf("%s has the wrong type (%s expected)", typeErr.Field, typeErr.Type))
		case errors.As(err, &timeErr):
			return apperror.ValidationFailed("dueDate", "dueDate must be an RFC 3339 timestamp")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", "request body is too large")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body")
		}
	}

	if dec.More() {
		return apperror.ValidationFailed("body", "request body must be a single JSON object")
	}
	return nil
}
