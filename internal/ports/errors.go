package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors returned by bot transports.
var (
	// ErrRateLimited indicates the backend rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates the backend is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates a call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates the backend returned a response the
	// client could not parse.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates the backend rejected the
	// credential.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// TransportError wraps a failure from a bot transport with the model and
// operation for diagnostics.
type TransportError struct {
	// Model identifies the backend model that produced the error.
	Model string

	// Operation names the call that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failed call may be retried.
// Transport implementations that classify their own errors answer for
// themselves; otherwise only the transient sentinels qualify.
func (e *TransportError) IsRetryable() bool {
	var classified interface{ IsRetryable() bool }
	if errors.As(e.Err, &classified) {
		return classified.IsRetryable()
	}
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}
