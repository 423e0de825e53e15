// Package errors provides structured error codes for the autoredistrict
// surfaces.
//
// The engine packages return rich domain errors (validation sentinels,
// DisconnectedError, InfeasibleError, EmptyDistrictError). This package maps
// them onto a flat code space that the CLI and the HTTP API can report
// consistently:
//   - INVALID_INPUT: option or table validation failures
//   - DISCONNECTED: the unit set does not form a contiguous region
//   - INFEASIBLE: no balanced contiguous split exists within tolerance
//   - EMPTY_DISTRICT: assembly produced a district without units
//   - NOT_FOUND: a requested plan does not exist
//   - STORE: plan persistence failures
//   - INTERNAL: everything else
//
// Usage:
//
//	err := errors.New(errors.ErrCodeInvalidInput, "districts must be positive, got %d", n)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // reject the request
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes reported by the CLI and the HTTP API.
const (
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeDisconnected  Code = "DISCONNECTED"
	ErrCodeInfeasible    Code = "INFEASIBLE"
	ErrCodeEmptyDistrict Code = "EMPTY_DISTRICT"
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeStore         Code = "STORE"
	ErrCodeInternal      Code = "INTERNAL"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code. It unwraps the error
// chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available. Returns the
// empty string when the chain holds no *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error: the message
// without the code prefix for *Error, the error string otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to the HTTP status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeDisconnected, ErrCodeInfeasible, ErrCodeEmptyDistrict:
		return http.StatusUnprocessableEntity
	case ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
