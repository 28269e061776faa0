package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the server.
type ErrorCode string

// Configuration error codes
const (
	ErrInvalidConfig  ErrorCode = "INVALID_CONFIG"
	ErrUnknownHandler ErrorCode = "UNKNOWN_HANDLER"
	ErrMissingOption  ErrorCode = "MISSING_OPTION"
	ErrDuplicatePath  ErrorCode = "DUPLICATE_PATH"
)

// Runtime error codes
const (
	ErrStorage            ErrorCode = "STORAGE_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Handler string    `json:"handler,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHandler records which handler the error belongs to.
func (e *Error) WithHandler(name string) *Error {
	e.Handler = name
	return e
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
