// Package domainerrors defines the coded error type shared by all engine
// operations. Codes classify failures for callers; the HTTP layer maps them
// to status codes without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeNotFound indicates a referenced account, plan, or request does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidState indicates the aggregate's status forbids the operation.
	CodeInvalidState Code = "invalid_state"
	// CodeBadRequest indicates malformed or rejected input.
	CodeBadRequest Code = "bad_request"
	// CodeConflict indicates a uniqueness or concurrent-update conflict.
	CodeConflict Code = "conflict"
	// CodeInternal indicates an unexpected failure (storage, encoding).
	CodeInternal Code = "internal"
)

// Error carries a code alongside a human-readable message. The wrapped cause,
// if any, is preserved for errors.Is/As chains.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code to its HTTP equivalent. NotFound -> 404,
// InvalidState -> 409, per the controller contract.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeConflict:
		return http.StatusConflict
	case CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
