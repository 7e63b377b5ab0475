// Package apperror provides domain-specific error types for authd.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to appropriate HTTP responses automatically.
//
// NEVER return raw database or infrastructure errors to the client. Always
// wrap them in an apperror type or return a generic internal error.
package apperror

import (
	"fmt"
	"net/http"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 400, 401, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "invalid_credentials").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// --- Login failure taxonomy ---
//
// The client-facing messages are part of the API contract and deliberately
// do not distinguish an unknown email from a wrong password.

// NewInvalidCredentials creates the 400 error returned when the submitted
// email/password pair does not match a stored credential.
func NewInvalidCredentials() *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "invalid_credentials",
		Message: "Incorrect email or password",
	}
}

// NewAccountDisabled creates the 401 error returned when a disabled account
// presents correct credentials.
func NewAccountDisabled() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    "account_disabled",
		Message: "Account is disabled",
	}
}

// NewAuthenticationFailed creates the 401 catch-all login error. The real
// cause is stored in Internal for logging.
func NewAuthenticationFailed(err error) *AppError {
	return &AppError{
		Code:     http.StatusUnauthorized,
		Type:     "authentication_failed",
		Message:  "Authentication Failed",
		Internal: err,
	}
}

// --- General constructors ---

// NewBadRequest creates a 400 Bad Request error.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "bad_request",
		Message: message,
	}
}

// NewMissingField creates the 400 error returned when a required request
// field is absent.
func NewMissingField() *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "missing_field",
		Message: "Missing details",
	}
}

// NewUnauthorized creates a 401 Unauthorized error.
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    "unauthorized",
		Message: message,
	}
}

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Type:    "not_found",
		Message: message,
	}
}

// NewConflict creates a 409 Conflict error.
func NewConflict(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    "conflict",
		Message: message,
	}
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}
