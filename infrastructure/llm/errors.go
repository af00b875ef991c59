package llm

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the bot client and providers.
var (
	// ErrEmptyAPIKey indicates a credential was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyBaseURL indicates a provider requires an explicit endpoint
	// URL and none was configured.
	ErrEmptyBaseURL = errors.New("base URL cannot be empty")

	// ErrEmptyResponse indicates the backend returned an empty body.
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrNoResponseChoice indicates the response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorType classifies a backend error for standardized handling, such as
// deciding retryability.
type ErrorType int

const (
	// ErrorTypeUnknown is an error of undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication is a rejected credential.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit is an exceeded rate limit.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest is a malformed request.
	ErrorTypeBadRequest
	// ErrorTypeNotFound is a missing resource, usually a bad model name.
	ErrorTypeNotFound
	// ErrorTypeServerError is a backend-side failure.
	ErrorTypeServerError
	// ErrorTypeContentPolicy is a request blocked by a content policy.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork is a client-side network problem.
	ErrorTypeNetwork
	// ErrorTypeTimeout is an exceeded deadline.
	ErrorTypeTimeout
)

// ProviderError normalizes provider-specific failures into a common
// shape with a classified type and the originating provider.
type ProviderError struct {
	// Type classifies the error.
	Type ErrorType
	// Provider names the backend that produced the error.
	Provider string
	// StatusCode holds the HTTP status from the backend, if applicable.
	StatusCode int
	// Message is the user-facing message from the backend.
	Message string
	// WrappedError is the original error, for chaining.
	WrappedError error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	base := fmt.Sprintf("%s error", e.Provider)
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if s := e.typeString(); s != "" {
		base += fmt.Sprintf(" [%s]", s)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.WrappedError != nil {
		base += fmt.Sprintf(": %v", e.WrappedError)
	}
	return base
}

// Unwrap returns the wrapped error for errors.Is and errors.As.
func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether the failed request may be retried.
// Transient conditions such as rate limits, server errors and timeouts
// qualify; authentication and request errors do not.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

func (e *ProviderError) typeString() string {
	switch e.Type {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeServerError:
		return "server_error"
	case ErrorTypeContentPolicy:
		return "content_policy"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return ""
	}
}

// NewProviderError builds a ProviderError from its parts.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier turns provider-specific failures into ProviderError
// values using HTTP status or context state.
type ErrorClassifier struct {
	// Provider names the backend this classifier works for.
	Provider string
}

// ClassifyHTTPError classifies an error by its HTTP status code.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType
	switch {
	case statusCode == 401 || statusCode == 403:
		errType = ErrorTypeAuthentication
		message = fmt.Sprintf("%s authentication failed", ec.Provider)
	case statusCode == 429:
		errType = ErrorTypeRateLimit
		message = fmt.Sprintf("%s rate limit exceeded", ec.Provider)
	case statusCode == 404:
		errType = ErrorTypeNotFound
	case statusCode >= 400 && statusCode < 500:
		errType = ErrorTypeBadRequest
	case statusCode >= 500:
		errType = ErrorTypeServerError
	default:
		errType = ErrorTypeUnknown
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError classifies context deadline and cancellation
// errors, which surface as timeouts at this layer.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}
