// Package apperr holds the error taxonomy shared by every service and its
// mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kinds. Every *Error unwraps to exactly one of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Error is a classified, user-facing error.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func Validation(msg string) *Error   { return &Error{kind: ErrValidation, msg: msg} }
func NotFound(msg string) *Error     { return &Error{kind: ErrNotFound, msg: msg} }
func Conflict(msg string) *Error     { return &Error{kind: ErrConflict, msg: msg} }
func Unauthorized(msg string) *Error { return &Error{kind: ErrUnauthorized, msg: msg} }
func Forbidden(msg string) *Error    { return &Error{kind: ErrForbidden, msg: msg} }

// Status maps an error to its HTTP status. Conflicts answer 400, which is
// what existing API clients expect.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable error code used in response bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "server_error"
	}
}
