// Package errors provides the standardized error taxonomy of the licence
// application lifecycle, plus conversion to BPMN errors for the workflow engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Domain outcomes surfaced verbatim to callers.
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeActiveApplicationExists ErrorCode = "ACTIVE_APPLICATION_EXISTS"
	ErrCodeNotFound                ErrorCode = "NOT_FOUND"
	ErrCodeInvalidStatus           ErrorCode = "INVALID_STATUS"
	ErrCodeForbidden               ErrorCode = "FORBIDDEN"

	// Infrastructure failures.
	ErrCodeDatabaseFailed         ErrorCode = "DATABASE_FAILED"
	ErrCodeLockServiceFailed      ErrorCode = "LOCK_SERVICE_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSchedulerFailed        ErrorCode = "SCHEDULER_FAILED"
)

// Sentinel errors for errors.Is matching across package boundaries.
var (
	ErrValidationFailed        = errors.New(string(ErrCodeValidationFailed))
	ErrActiveApplicationExists = errors.New(string(ErrCodeActiveApplicationExists))
	ErrNotFound                = errors.New(string(ErrCodeNotFound))
	ErrInvalidStatus           = errors.New(string(ErrCodeInvalidStatus))
	ErrForbidden               = errors.New(string(ErrCodeForbidden))
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`

	sentinel error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match the taxonomy sentinel for this code.
func (e *StandardError) Unwrap() error {
	return e.sentinel
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrValidationFailed,
	}
}

// NewActiveApplicationExistsError creates a non-retryable conflict error.
func NewActiveApplicationExistsError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodeActiveApplicationExists,
		Message:   fmt.Sprintf("An active application for category %s already exists; wait for it to be resolved", category),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrActiveApplicationExists,
	}
}

// NewNotFoundError creates a non-retryable missing-entity error.
func NewNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Application not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrNotFound,
	}
}

// NewInvalidStatusError creates a non-retryable illegal-transition error.
func NewInvalidStatusError(operation, currentStatus string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatus,
		Message:   fmt.Sprintf("Operation %s is not allowed in status %s", operation, currentStatus),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrInvalidStatus,
	}
}

// NewForbiddenError creates a non-retryable ownership error.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Application is assigned to another inspector",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrForbidden,
	}
}

// NewDatabaseFailedError creates a retryable store error.
func NewDatabaseFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseFailed,
		Message:   "Record store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLockServiceFailedError creates a retryable mutex service error.
func NewLockServiceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLockServiceFailed,
		Message:   "Lock service operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchedulerFailedError creates a retryable task scheduler error.
func NewSchedulerFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchedulerFailed,
		Message:   "Verification task could not be enqueued",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. BPMN Error Integration
// ==========================

// BPMNError represents an error thrown to the workflow engine.
type BPMNError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
	Retries   int32  `json:"retries"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// GetRetryCount returns the recommended job retry count per error code.
func GetRetryCount(code ErrorCode) int32 {
	switch code {
	case ErrCodeDatabaseFailed,
		ErrCodeLockServiceFailed,
		ErrCodeSchedulerFailed,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	default:
		return 0 // Domain outcomes: no retry
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
	}
}

// IsDomainOutcome reports whether err is one of the expected domain outcomes
// (as opposed to an infrastructure failure).
func IsDomainOutcome(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrActiveApplicationExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrForbidden)
}
