// Package errs defines the error taxonomy shared across services and the
// HTTP layer. Handlers map these sentinels to status codes; everything else
// is treated as an internal error.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks client mistakes: empty query text, malformed
	// filters, out-of-range limits.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExternalService marks embedding/chat API failures, including
	// missing credentials. Surfaced as 503, never retried at this layer.
	ErrExternalService = errors.New("external service unavailable")

	// ErrDimensionMismatch is a data-integrity fault: a stored vector's
	// dimensionality disagrees with the query vector's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrBackendUnavailable signals that the vector-native store path
	// cannot serve; the caller degrades to the fallback ranker.
	ErrBackendUnavailable = errors.New("vector backend unavailable")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
)

// InvalidInputf wraps ErrInvalidInput with a formatted detail message.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ExternalServicef wraps ErrExternalService with a formatted detail message.
func ExternalServicef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExternalService, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted detail message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// DimensionMismatch reports the two disagreeing dimensionalities.
func DimensionMismatch(want, got int) error {
	return fmt.Errorf("%w: query dim %d, stored dim %d", ErrDimensionMismatch, want, got)
}
