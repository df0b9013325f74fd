// Package shared contains common domain types, errors, and events
// that are used across all domain packages. This package has zero external
// dependencies.
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
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")
	ErrInvalidFormat = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Storage errors
	ErrStorage = errors.New("storage error")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "question", "reward", "streak"
	Op      string // Operation that failed, e.g., "Award", "Touch"
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

// Question domain errors
var (
	ErrQuestionNotFound     = NewDomainError("question", "Find", ErrNotFound, "question not found")
	ErrLessonNotFound       = NewDomainError("question", "FindLesson", ErrNotFound, "lesson not found")
	ErrNoCorrectOption      = NewDomainError("question", "ResolveAnswer", ErrInvalidState, "question has no option flagged correct")
	ErrUnknownQuestionType  = NewDomainError("question", "Validate", ErrInvalidInput, "unknown question type")
	ErrUngradeablePayload   = NewDomainError("question", "Decode", ErrInvalidFormat, "submitted payload cannot be interpreted")
	ErrMissingAnswerPayload = NewDomainError("question", "Decode", ErrEmptyValue, "submitted payload is empty")
)

// Attempt domain errors
var (
	ErrAttemptNotFound = NewDomainError("attempt", "Find", ErrNotFound, "attempt not found")
	ErrInvalidOrdinal  = NewDomainError("attempt", "Validate", ErrInvalidInput, "attempt ordinal must be positive")
)

// Reward domain errors
var (
	ErrProfileNotFound  = NewDomainError("reward", "FindProfile", ErrNotFound, "reward profile not found")
	ErrInvalidXPAmount  = NewDomainError("reward", "Validate", ErrNegativeValue, "xp amount must be positive")
	ErrInvalidXPReason  = NewDomainError("reward", "Validate", ErrInvalidInput, "unknown xp reason")
	ErrLevelTableEmpty  = NewDomainError("reward", "ComputeLevel", ErrInvalidState, "level table is empty")
	ErrLedgerWriteFault = NewDomainError("reward", "Award", ErrStorage, "failed to append ledger transaction")
)

// Streak domain errors
var (
	ErrStreakNotFound = NewDomainError("streak", "Find", ErrNotFound, "streak not found")
)

// Lesson progress domain errors
var (
	ErrProgressNotFound = NewDomainError("lesson", "FindProgress", ErrNotFound, "lesson progress not found")
	ErrBackwardStatus   = NewDomainError("lesson", "Transition", ErrStateTransition, "lesson status cannot move backward")
)

// Badge domain errors
var (
	ErrBadgeNotFound      = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrBadgeAlreadyEarned = NewDomainError("badge", "Award", ErrAlreadyExists, "badge already earned")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsStorage checks if the error came from the persistence layer.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrInvalidFormat)
}
