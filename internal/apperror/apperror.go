// Package apperror defines the domain errors shared by every layer.
//
// Each constructor wraps one of the sentinel errors below, so callers can test
// the kind with errors.Is while still getting a human-readable Message:
//
//	err := apperror.Unauthorized("You must be logged in to view tasks")
//	errors.Is(err, apperror.ErrUnauthorized) // true
//	err.Error()                               // "You must be logged in to view tasks"
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %d", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized returns an AppError for a call that needs a signed-in user.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable reports that a backing resource has no active connection.
// HTTP handlers map this to 503 Service Unavailable.
func Unavailable(resource string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s not available", resource),
	}
}
