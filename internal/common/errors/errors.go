// Package errors provides the typed error taxonomy shared by the lifecycle
// engine. Leaf packages return these errors verbatim; only the work-session
// controller and the swipe tracker react to them with compensating actions.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// ErrorCode identifies a failure class surfaced to the UI layer.
type ErrorCode string

const (
	// ErrCodeInvalidTransition means the event is not legal for the record's
	// current status. If it reaches the core it is a UI bug; never retried.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeOtpExpired means the code matched a challenge past its window.
	// User-correctable: the caller should regenerate.
	ErrCodeOtpExpired ErrorCode = "OTP_EXPIRED"

	// ErrCodeOtpMismatch means the submitted code did not match. The caller
	// may retry; there is no lockout counter.
	ErrCodeOtpMismatch ErrorCode = "OTP_MISMATCH"

	// ErrCodeAlreadyProcessed is the swipe idempotency guard. Surfaced as a
	// no-op to the user, not as an error dialog.
	ErrCodeAlreadyProcessed ErrorCode = "ALREADY_PROCESSED"

	// ErrCodeClockSkew means workEndTime would precede workStartTime. Fatal
	// to the specific transition, never clamped.
	ErrCodeClockSkew ErrorCode = "CLOCK_SKEW"

	// ErrCodeRemoteFailure is a persistence or network failure. Triggers the
	// swipe rollback path and is surfaced with a retry affordance.
	ErrCodeRemoteFailure ErrorCode = "REMOTE_FAILURE"

	// ErrCodeRecordNotFound means no application exists for the given key.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
)

// ==========================
// 2. Standard Error Type
// ==========================

// StandardError is a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var se *StandardError
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// CodeOf extracts the error code, or empty string for foreign errors.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidTransitionError creates a non-retryable state machine error.
func NewInvalidTransitionError(status, event string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Event not legal for current application status",
		Details:   fmt.Sprintf("status: %s, event: %s", status, event),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOtpExpiredError creates a user-correctable OTP expiry error.
func NewOtpExpiredError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOtpExpired,
		Message:   "Passcode has expired, request a new one",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOtpMismatchError creates a user-correctable wrong-code error.
func NewOtpMismatchError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOtpMismatch,
		Message:   "Passcode does not match",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyProcessedError creates the swipe idempotency guard error.
func NewAlreadyProcessedError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyProcessed,
		Message:   "Job already swiped this session",
		Details:   fmt.Sprintf("jobId: %s", jobID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClockSkewError creates a fatal timestamp ordering error.
func NewClockSkewError(applicationID string, start, end time.Time) *StandardError {
	return &StandardError{
		Code:      ErrCodeClockSkew,
		Message:   "Work end time precedes work start time",
		Details:   fmt.Sprintf("applicationId: %s, start: %s, end: %s", applicationID, start.Format(time.RFC3339), end.Format(time.RFC3339)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteFailureError creates a retryable persistence/network error.
func NewRemoteFailureError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteFailure,
		Message:   "Remote store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable missing-record error.
func NewRecordNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Application record not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryable reports whether the error carries a retryable code.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
