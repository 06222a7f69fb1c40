// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
	CodeNegativeQty  = "NEGATIVE_OR_ZERO_QUANTITY"

	// Business rule violations (422)
	CodeBusinessRule            = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeInsufficientReservation = "INSUFFICIENT_RESERVATION"
	CodeCapacityExceeded        = "CAPACITY_EXCEEDED"
	CodeLocationOccupied        = "LOCATION_OCCUPIED"
	CodeLocationInactive        = "LOCATION_INACTIVE"
	CodeInvalidTransition       = "INVALID_TRANSITION"

	// Concurrency (409)
	CodeOperationConflict = "OPERATION_CONFLICT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
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

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNegativeOrZeroQuantity is returned when an operation requires qty > 0.
func NewNegativeOrZeroQuantity(operation string, qty any) *AppError {
	return &AppError{
		Code:       CodeNegativeQty,
		Message:    "Quantity must be positive",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"operation": operation, "quantity": qty},
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

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock creates a stock shortage error with the counter that
// ran short so the caller can render requested vs. available.
func NewInsufficientStock(batchID string, counter string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"batch_id":  batchID,
			"counter":   counter,
			"requested": requested,
			"available": available,
		},
	}
}

// NewInsufficientReservation is returned when release/delivery exceeds the
// reserved quantity.
func NewInsufficientReservation(batchID string, requested, reserved float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientReservation,
		Message:    "Insufficient reservation",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"batch_id":  batchID,
			"requested": requested,
			"reserved":  reserved,
		},
	}
}

// NewCapacityExceeded is returned when a location cannot hold the requested quantity.
func NewCapacityExceeded(locationID string, requested, occupied, maxCapacity float64) *AppError {
	return &AppError{
		Code:       CodeCapacityExceeded,
		Message:    "Location capacity exceeded",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"location_id":  locationID,
			"requested":    requested,
			"occupied":     occupied,
			"max_capacity": maxCapacity,
		},
	}
}

// NewLocationOccupied blocks deactivation/deletion of a location with stock.
func NewLocationOccupied(locationID string, occupied float64) *AppError {
	return &AppError{
		Code:       CodeLocationOccupied,
		Message:    "Location still holds stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"location_id": locationID, "occupied": occupied},
	}
}

// NewLocationInactive is returned when assigning stock to a deactivated location.
func NewLocationInactive(locationID string) *AppError {
	return &AppError{
		Code:       CodeLocationInactive,
		Message:    "Location is inactive",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"location_id": locationID},
	}
}

// NewInvalidTransition is returned for a batch status change not permitted
// from the current state.
func NewInvalidTransition(batchID, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("Cannot transition batch from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"batch_id": batchID, "from": from, "to": to},
	}
}

// NewOperationConflict is surfaced after bounded retries on concurrent writes.
func NewOperationConflict(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeOperationConflict,
		Message:    "Operation conflicted with a concurrent change. Please retry.",
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

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
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
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsOperationConflict checks if error is CodeOperationConflict
func IsOperationConflict(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeOperationConflict
	}
	return false
}

// IsBusinessError reports whether err is a business-rule violation that must
// surface to the caller verbatim and never be retried automatically.
func IsBusinessError(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeInsufficientStock, CodeInsufficientReservation, CodeCapacityExceeded,
		CodeLocationOccupied, CodeLocationInactive, CodeInvalidTransition,
		CodeNegativeQty, CodeBusinessRule:
		return true
	}
	return false
}
