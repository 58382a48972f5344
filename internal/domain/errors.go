package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConfiguration = errors.New("configuration error")
	ErrRateLimited   = errors.New("rate limit exceeded")
	// ErrNotConfigured marks an optional collaborator (history store, blob store) that
	// was not set up for this deployment.
	ErrNotConfigured = errors.New("not configured")
)

// UpstreamError carries a non-2xx answer from the completion provider, or a failure
// to reach it. Body is the provider's error value (or a JSON string describing the
// transport failure) and is forwarded to the client as the error value.
type UpstreamError struct {
	Status int
	Body   []byte
	// Err is the transport error, if any.
	Err error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Unwrap exposes the transport error to errors.Is and errors.As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusCode implements the HTTPError interface
func (e *UpstreamError) StatusCode() int {
	if e.Status < 400 {
		return http.StatusBadGateway
	}
	return e.Status
}
