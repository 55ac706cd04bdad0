// Package http provides shared HTTP client infrastructure for API adapters:
// typed errors, retry with exponential backoff, and structured call logging.
package http

import (
	"errors"
	"fmt"
)

// ErrorType categorizes an API failure. The orchestrator treats
// authentication errors as fatal; the retry layer consults Retryable.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeTimeout
	ErrTypeServiceUnavailable
	ErrTypeNetwork
	ErrTypeInvalidRequest
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeNetwork:
		return "network error"
	case ErrTypeInvalidRequest:
		return "invalid request"
	default:
		return "unknown error"
	}
}

// Error is an API client error with enough context for retry and reporting
// decisions.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Provider   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Provider, e.Type.String(), e.Message, e.StatusCode)
}

// Is matches on error type so callers can write errors.Is(err, &Error{Type: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable reports whether the retry layer may attempt the call again.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewAuthenticationError creates a fatal credential error. Never retried.
func NewAuthenticationError(provider, message string) *Error {
	return &Error{Type: ErrTypeAuthentication, Message: message, StatusCode: 401, Retryable: false, Provider: provider}
}

// NewRateLimitError creates a retryable 429 error.
func NewRateLimitError(provider, message string) *Error {
	return &Error{Type: ErrTypeRateLimit, Message: message, StatusCode: 429, Retryable: true, Provider: provider}
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(provider, message string) *Error {
	return &Error{Type: ErrTypeTimeout, Message: message, Retryable: true, Provider: provider}
}

// NewServiceUnavailableError creates a retryable 5xx error.
func NewServiceUnavailableError(provider, message string) *Error {
	return &Error{Type: ErrTypeServiceUnavailable, Message: message, StatusCode: 503, Retryable: true, Provider: provider}
}

// NewNetworkError creates a retryable transport-level error.
func NewNetworkError(provider, message string) *Error {
	return &Error{Type: ErrTypeNetwork, Message: message, Retryable: true, Provider: provider}
}

// NewInvalidRequestError creates a non-retryable 400 error.
func NewInvalidRequestError(provider, message string) *Error {
	return &Error{Type: ErrTypeInvalidRequest, Message: message, StatusCode: 400, Retryable: false, Provider: provider}
}

// IsAuthError reports whether err is (or wraps) an authentication error.
func IsAuthError(err error) bool {
	var httpErr *Error
	return errors.As(err, &httpErr) && httpErr.Type == ErrTypeAuthentication
}
