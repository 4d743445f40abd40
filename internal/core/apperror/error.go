// Package apperror provides structured error handling for the procurement core.
// Every business failure surfaces as an AppError so callers can display or retry it.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. One code per failure kind the workflow can report.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"

	// Caller errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Workflow guards
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeBudgetExceeded         = "BUDGET_EXCEEDED"
	CodeInvalidRelease         = "INVALID_RELEASE"
	CodeMatchFailure           = "MATCH_FAILURE"
	CodeSegregationOfDuties    = "SEGREGATION_OF_DUTIES_VIOLATION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the workflow engine.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable reason sufficient to correct and retry
	Message string `json:"message"`

	// Details contains additional context (amounts, states, discrepancies)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400).
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidTransition reports that a document is not in a state permitting the operation.
func NewInvalidTransition(entity, from, event string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("%s in status %q does not allow %q", entity, from, event),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "status": from, "operation": event},
	}
}

// NewInsufficientFunds reports a failed reservation.
func NewInsufficientFunds(lineID any, requested, available string) *AppError {
	return &AppError{
		Code: CodeInsufficientFunds,
		Message: fmt.Sprintf("insufficient available budget: requested %s, available %s",
			requested, available),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"budget_line_id": lineID,
			"requested":      requested,
			"available":      available,
		},
	}
}

// NewBudgetExceeded reports an amount that does not fit its reservation or allocation.
func NewBudgetExceeded(message string) *AppError {
	return &AppError{
		Code:       CodeBudgetExceeded,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidRelease reports a release that would drive committed below zero.
func NewInvalidRelease(lineID any, amount, committed string) *AppError {
	return &AppError{
		Code:       CodeInvalidRelease,
		Message:    fmt.Sprintf("cannot release %s: only %s is committed", amount, committed),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"budget_line_id": lineID,
			"amount":         amount,
			"committed":      committed,
		},
	}
}

// NewMatchFailure carries the discrepancy report of a failed three-way match.
func NewMatchFailure(discrepancies any) *AppError {
	return &AppError{
		Code:       CodeMatchFailure,
		Message:    "three-way match failed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"discrepancies": discrepancies},
	}
}

// NewSegregationOfDuties reports an actor attempting a role they are excluded from.
func NewSegregationOfDuties(message string) *AppError {
	return &AppError{
		Code:       CodeSegregationOfDuties,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewIdempotencyConflict is returned while a request with the same key is in flight.
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when a key is reused with a different request body.
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key reused with a different request",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}
