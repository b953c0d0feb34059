// Package apperr holds the error kinds shared by the pool, repository and HTTP layers.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// StatusClientClosedRequest is written when the client went away before the request was
// served. Nobody reads it; it keeps hang-ups apart from 5xx in logs and metrics.
const StatusClientClosedRequest = 499

var (
	// ErrValidation marks malformed client input. No connection is acquired for it.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when no product matches the requested id.
	ErrNotFound = errors.New("not found")
	// ErrConstraint marks a statement the store rejected because of the data it carried.
	ErrConstraint = errors.New("constraint violation")
	// ErrBackend is a failed statement against the store.
	ErrBackend = errors.New("backend error")
	// ErrBackendUnavailable means the store could not hand out a connection.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrPoolExhausted means the caller waited longer than the acquire timeout.
	ErrPoolExhausted = errors.New("pool exhausted")
	// ErrPoolClosed is returned by every acquisition after the pool was closed.
	ErrPoolClosed = errors.New("pool closed")
)

// HTTPStatus maps an error to the status code written to the client.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConstraint):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPoolClosed), errors.Is(err, ErrPoolExhausted), errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBackend):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code is the short machine-readable name written in error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConstraint):
		return "constraint_violation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPoolClosed):
		return "pool_closed"
	case errors.Is(err, ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrBackend):
		return "backend_error"
	case errors.Is(err, context.Canceled):
		return "client_closed_request"
	default:
		return "backend_error"
	}
}
