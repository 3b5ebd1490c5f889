// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrExpired         = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "alert", "prediction", "intervention"
	Op      string // Operation that failed, e.g., "Open", "Escalate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound  = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentNotActive = NewDomainError("student", "CheckStatus", ErrInvalidState, "student is not active")
)

// Prediction domain errors
var (
	ErrPredictionNotFound = NewDomainError("prediction", "Find", ErrNotFound, "prediction not found")
	ErrNoActivePrediction = NewDomainError("prediction", "GetActive", ErrNotFound, "no active prediction")
	ErrPredictionConflict = NewDomainError("prediction", "Record", ErrConcurrentModification, "concurrent prediction write")
	ErrInvalidProbability = NewDomainError("prediction", "Validate", ErrValueOutOfRange, "probability must be within [0,1]")
)

// Alert domain errors
var (
	ErrAlertNotFound       = NewDomainError("alert", "Find", ErrNotFound, "alert not found")
	ErrAlertTerminal       = NewDomainError("alert", "Transition", ErrStateTransition, "alert is in a terminal status")
	ErrAlertNotActive      = NewDomainError("alert", "Acknowledge", ErrStateTransition, "alert is not in Active status")
	ErrAlertConflict       = NewDomainError("alert", "Open", ErrConcurrentModification, "concurrent open alert write")
	ErrEscalationNotDue    = NewDomainError("alert", "Escalate", ErrInvalidState, "escalation window has not elapsed")
	ErrEscalationExhausted = NewDomainError("alert", "Escalate", ErrInvalidState, "escalation level is at maximum")
)

// Intervention domain errors
var (
	ErrInterventionNotFound = NewDomainError("intervention", "Find", ErrNotFound, "intervention not found")
	ErrInterventionClosed   = NewDomainError("intervention", "RecordSession", ErrStateTransition, "intervention is completed or cancelled")
	ErrInvalidSchedule      = NewDomainError("intervention", "Validate", ErrInvalidInput, "invalid intervention schedule")
)

// Scoring errors
var (
	ErrMalformedFeatures = NewDomainError("assess", "Score", ErrInvalidInput, "feature vector has wrong shape")
)

// Notification errors
var (
	ErrDeliveryFailed = NewDomainError("notification", "Dispatch", ErrExternalService, "failed to dispatch notification")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidTransition checks if the error is an illegal state-machine move.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrStateTransition)
}

// IsConflict checks if the error is a concurrent-write race on a
// uniqueness invariant. Such failures are retried once with a fresh read.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsMalformedInput checks if the error is a validation/shape error.
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
