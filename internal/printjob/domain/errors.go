package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("print job not found")

	// ErrJobNotClaimable is returned when a dispatch attempt targets a job that is not pending
	ErrJobNotClaimable = errors.New("print job not in pending status")

	// ErrInvalidTransition is returned when a conditional status change finds the job in another state
	ErrInvalidTransition = errors.New("print job status transition not allowed")

	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrPrinterNotConfigured is returned when no printer is assigned to a job's store and role
	ErrPrinterNotConfigured = errors.New("no printer configured")

	// ErrMaxRetriesExceeded is returned when a job has exhausted its retry budget
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ValidationError reports a missing or malformed job creation field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
