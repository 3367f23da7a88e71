// Package apperr defines the typed errors returned across the service layer
// and their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Error is an error that knows which HTTP status it maps to.
type Error struct {
	Status  int
	Message string
	Errors  []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Validation is returned for malformed or missing input.
func Validation(msg string, details ...string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Errors: details}
}

// Auth is returned for missing, invalid or expired credentials.
func Auth(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Message: msg}
}

// NotFound is returned when a resource is absent or not owned by the caller.
func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

// Internal wraps an unexpected store, hash or signing failure. The cause is
// kept for logging and never rendered to clients.
func Internal(msg string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, cause: cause}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("Something went wrong", err)
}
