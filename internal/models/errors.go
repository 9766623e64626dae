package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInsufficientData signals that the provider returned too little
// listening history to compute analytics. Handlers map it to the documented
// empty payload with a 200 status rather than an error response.
var ErrInsufficientData = errors.New("insufficient listening data")

// Stable machine-readable error codes returned in the error envelope.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeInvalidAccess     = "INVALID_ACCESS_TOKEN"
	CodeNotFound          = "NOT_FOUND"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeInternalError     = "INTERNAL_SERVER_ERROR"
)

// APIError is the error envelope returned by every endpoint. It implements
// the error interface; the HTTP status is excluded from JSON and used to
// write the response status line.
type APIError struct {
	// Err is the short human-readable error title.
	Err string `json:"error"`
	// Message provides additional human-readable information.
	Message string `json:"message,omitempty"`
	// Code is the stable machine-readable error code.
	Code string `json:"code"`
	// Details carries upstream detail, included only in development mode.
	Details string `json:"details,omitempty"`
	// StatusCode is the HTTP status to return (excluded from JSON).
	StatusCode int `json:"-"`
}

// Error returns a string representation of the API error.
// It implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	}
	return e.Err
}

// WithMessage sets the message field and returns the same instance for
// chaining.
func (e *APIError) WithMessage(message string) *APIError {
	e.Message = message
	return e
}

// WithDetails sets the details field and returns the same instance for
// chaining. Callers must only attach details in development mode.
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// NewValidationError creates a 400 error for missing or malformed input.
// Validation failures are never retryable without changing the request.
func NewValidationError(message string) *APIError {
	return &APIError{
		Err:        "Validation failed",
		Message:    message,
		Code:       CodeValidationError,
		StatusCode: http.StatusBadRequest,
	}
}

// NewUnauthorized creates a 401 error for requests lacking a credential.
func NewUnauthorized(message string) *APIError {
	return &APIError{
		Err:        "Unauthorized",
		Message:    message,
		Code:       CodeUnauthorized,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewSessionExpired creates a 401 error for a valid credential whose session
// record no longer exists. The client must log in again.
func NewSessionExpired() *APIError {
	return &APIError{
		Err:        "Session expired",
		Message:    "Your session has expired. Please log in again.",
		Code:       CodeSessionExpired,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInvalidToken creates a 403 error for a malformed or tampered
// credential. Unlike a missing session this is never retryable without new
// credentials.
func NewInvalidToken() *APIError {
	return &APIError{
		Err:        "Invalid token",
		Code:       CodeInvalidToken,
		StatusCode: http.StatusForbidden,
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(resource string) *APIError {
	return &APIError{
		Err:        fmt.Sprintf("%s not found", resource),
		Code:       CodeNotFound,
		StatusCode: http.StatusNotFound,
	}
}

// NewUserNotFound creates a 404 error for a missing user record.
func NewUserNotFound() *APIError {
	return &APIError{
		Err:        "User not found",
		Code:       CodeUserNotFound,
		StatusCode: http.StatusNotFound,
	}
}

// NewRateLimited creates a 429 error propagated from the provider. The
// client should back off before retrying.
func NewRateLimited() *APIError {
	return &APIError{
		Err:        "Too many requests",
		Message:    "Rate limit exceeded. Please try again later.",
		Code:       CodeRateLimitExceeded,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewUpstreamFailure creates a 500 error for an unexpected provider
// failure. Detail is suppressed outside development mode.
func NewUpstreamFailure(message string) *APIError {
	return &APIError{
		Err:        "Upstream request failed",
		Message:    message,
		Code:       CodeUpstreamError,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewInternalError creates a generic 500 error.
func NewInternalError(message string) *APIError {
	return &APIError{
		Err:        "Internal server error",
		Message:    message,
		Code:       CodeInternalError,
		StatusCode: http.StatusInternalServerError,
	}
}

// AsAPIError converts any error into an APIError suitable for the response
// envelope, preserving typed errors and wrapping everything else as an
// internal error.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError("An unexpected error occurred.")
}
