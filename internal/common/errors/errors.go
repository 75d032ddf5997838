// Package errors provides the standardized error taxonomy for the placement
// pipeline core. Every operation returns one of these codes so callers can
// distinguish a retryable conflict from a hard rule violation.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrCodeForbidden             ErrorCode = "FORBIDDEN"
	ErrCodeAlreadyExists         ErrorCode = "ALREADY_EXISTS"
	ErrCodeAlreadySubmitted      ErrorCode = "ALREADY_SUBMITTED"
	ErrCodeExpired               ErrorCode = "EXPIRED"
	ErrCodeNoEligibleInterviewer ErrorCode = "NO_ELIGIBLE_INTERVIEWER"
	ErrCodeConcurrencyConflict   ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL"
)

// PipelineError is a structured application error.
type PipelineError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *PipelineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the pipeline error code from err, or ErrCodeInternal when
// err is not a PipelineError.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given pipeline error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewNotFound reports that a referenced entity does not exist.
func NewNotFound(resource, id string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransition reports that the requested action is not legal from
// the current status. State is left untouched; the details carry the current
// status so the caller can re-fetch and decide.
func NewInvalidTransition(current, action string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeInvalidTransition,
		Message:   "action not legal from current status",
		Details:   fmt.Sprintf("status: %s, action: %s", current, action),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbidden reports that the actor is not authorized for this application
// or round.
func NewForbidden(details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeForbidden,
		Message:   "actor not authorized for this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyExists reports an idempotency violation on creation.
func NewAlreadyExists(resource, details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeAlreadyExists,
		Message:   fmt.Sprintf("%s already exists", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadySubmitted reports a duplicate submission.
func NewAlreadySubmitted(resource, id string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeAlreadySubmitted,
		Message:   fmt.Sprintf("%s already submitted", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExpired reports an action attempted past a deadline.
func NewExpired(resource string, deadline time.Time) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeExpired,
		Message:   fmt.Sprintf("%s deadline has passed", resource),
		Details:   fmt.Sprintf("deadline: %s", deadline.UTC().Format(time.RFC3339)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoEligibleInterviewer reports that the scheduler found no interviewer
// under capacity for the round. Recoverable by retrying later.
func NewNoEligibleInterviewer(round string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeNoEligibleInterviewer,
		Message:   "no eligible interviewer available",
		Details:   fmt.Sprintf("round: %s", round),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConcurrencyConflict reports that an optimistic write lost a race.
// The whole operation may be retried.
func NewConcurrencyConflict(resource, id string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeConcurrencyConflict,
		Message:   fmt.Sprintf("concurrent update on %s", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailed reports malformed input rejected before any state was
// touched.
func NewValidationFailed(details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeValidationFailed,
		Message:   "request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternal wraps an unexpected infrastructure failure.
func NewInternal(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeInternal,
		Message:   "internal error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
