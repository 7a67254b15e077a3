package core

import (
	"errors"
	"fmt"
)

// Error classes every layer can match with errors.Is
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Domain errors
var (
	ErrUnknownEventType     = errors.New("unknown event type")
	ErrAlreadyCompleted     = errors.New("habit already completed for this day")
	ErrProgressOutOfRange   = errors.New("progress must be between 0 and 100")
	ErrDuplicateRefKind     = errors.New("rollback reference kind already present")
	ErrMissingRequired      = errors.New("missing required field")
	ErrInvalidInput         = errors.New("invalid input")
	ErrStreakExceedsHistory = errors.New("streak exceeds history length")
)

// ValidationError reports a malformed or unrecognized input.
// It is never retried by the kernel.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Unwrap returns the underlying domain error, if any
func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a missing owner, event or domain record.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFoundError builds a NotFoundError
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) true
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StoreUnavailableError wraps an I/O failure in an underlying store.
// The kernel does not retry; the caller decides.
type StoreUnavailableError struct {
	Op  string
	Err error
}

// NewStoreUnavailableError wraps err for operation op
func NewStoreUnavailableError(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

// Is makes errors.Is(err, ErrStoreUnavailable) true
func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStoreUnavailable reports whether err is a store I/O failure
func IsStoreUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }
