// Package errors provides standardized domain errors with codes for the Soledex pipeline and API.
//
// Usage:
//
//	// In pipeline components - return typed errors
//	if resp.StatusCode == http.StatusTooManyRequests {
//	    return errors.SourceTransient("rate limited by source")
//	}
//
//	// In the coordinator - check with errors.Is
//	if errors.Is(err, errors.ErrSourceFatal) {
//	    budget.MarkExhausted(source)
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application. The SOURCE_*, MALFORMED_*
// and STORAGE_* codes form the pipeline's error taxonomy; the rest back the
// read API.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeValidation    Code = "VALIDATION"
	CodeInternal      Code = "INTERNAL"

	// CodeSourceTransient marks a retryable source failure (timeout, rate
	// limit). The coordinator retries with backoff up to the configured
	// attempt count, then skips the query.
	CodeSourceTransient Code = "SOURCE_TRANSIENT"

	// CodeSourceFatal marks a source failure that will not recover within
	// the run (auth or config error). The source is exhausted for the rest
	// of the run and never retried.
	CodeSourceFatal Code = "SOURCE_FATAL"

	// CodeMalformedPayload marks a response the adapter could not map into
	// the canonical shape. The single item is skipped; the run continues.
	CodeMalformedPayload Code = "MALFORMED_PAYLOAD"

	// CodeStorageTransient marks a storage sink failure. The upload is
	// retried a bounded number of times, then the image is persisted
	// without a storage ref.
	CodeStorageTransient Code = "STORAGE_TRANSIENT"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional cause.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	cause   error             // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists    = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation       = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
	ErrSourceTransient  = &Error{Code: CodeSourceTransient, Message: "transient source failure"}
	ErrSourceFatal      = &Error{Code: CodeSourceFatal, Message: "fatal source failure"}
	ErrMalformedPayload = &Error{Code: CodeMalformedPayload, Message: "malformed source payload"}
	ErrStorageTransient = &Error{Code: CodeStorageTransient, Message: "transient storage failure"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error carrying per-field messages.
func ValidationWithDetails(msg string, details map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// SourceTransient creates a retryable source error.
func SourceTransient(msg string) *Error {
	return &Error{Code: CodeSourceTransient, Message: msg}
}

// SourceFatal creates a non-retryable source error.
func SourceFatal(msg string) *Error {
	return &Error{Code: CodeSourceFatal, Message: msg}
}

// MalformedPayload creates a malformed payload error.
func MalformedPayload(msg string) *Error {
	return &Error{Code: CodeMalformedPayload, Message: msg}
}

// StorageTransient creates a retryable storage error.
func StorageTransient(msg string) *Error {
	return &Error{Code: CodeStorageTransient, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
