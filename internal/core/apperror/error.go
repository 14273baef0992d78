// Package apperror provides structured error handling for the query layer.
// All errors surfaced to callers carry a machine-readable code so that
// retry exhaustion, missing rows and mock-resolution failures can be
// told apart without string matching.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Infrastructure errors
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Input errors
	CodeValidation = "VALIDATION_ERROR"

	// Lookup errors
	CodeNotFound = "NOT_FOUND"

	// Raised only when the transaction retry limit is reached.
	// Deliberately does not wrap the last backend error: it signals
	// "gave up retrying", not the cause of the final attempt.
	CodeRetryExhausted = "RETRY_LIMIT_EXCEEDED"

	// Raised by the mock harness when no handler matched a query.
	CodeUnmatchedQuery = "UNMATCHED_QUERY"
)

// AppError is the standard error type for the platform.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (table names, keys, counts)
	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewInternal creates an internal error wrapping err.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// NewDatabase creates a backend execution error for the named operation.
func NewDatabase(op string, err error) *AppError {
	return &AppError{
		Code:    CodeDatabase,
		Message: fmt.Sprintf("database operation %s failed", op),
		Err:     err,
	}
}

// NewValidation creates a validation error.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewNotFound creates a not-found error for a row in table with the given key.
func NewNotFound(table string, key any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", table),
		Details: map[string]any{"table": table, "key": fmt.Sprintf("%v", key)},
	}
}

// NewRetryExhausted creates the dedicated retry-limit error.
// attempts is the total number of attempts made, including the first.
func NewRetryExhausted(attempts int) *AppError {
	return &AppError{
		Code:    CodeRetryExhausted,
		Message: fmt.Sprintf("transaction retry limit exceeded after %d attempts", attempts),
		Details: map[string]any{"attempts": attempts},
	}
}

// NewUnmatchedQuery creates a mock-resolution failure naming the query
// variant and record type that no handler matched.
func NewUnmatchedQuery(op, recordType string) *AppError {
	return &AppError{
		Code:    CodeUnmatchedQuery,
		Message: fmt.Sprintf("no mock handler matched %s query for record type %s", op, recordType),
		Details: map[string]any{"op": op, "record_type": recordType},
	}
}

// --- Classification helpers ---

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsRetryExhausted reports whether err is the retry-limit error.
func IsRetryExhausted(err error) bool {
	return HasCode(err, CodeRetryExhausted)
}

// IsUnmatchedQuery reports whether err is a mock-resolution failure.
func IsUnmatchedQuery(err error) bool {
	return HasCode(err, CodeUnmatchedQuery)
}
