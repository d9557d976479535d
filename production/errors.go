/*
errors.go - Centralized error types for the production workflow

PURPOSE:
  All error types in one place. Every error here is recoverable: callers
  report it to the user and leave state unchanged.

ERROR CATEGORIES:
  1. Validation    - missing or malformed input field
  2. Duplicate id  - worker/place id already taken
  3. Availability  - requested qty exceeds what upstream still holds
  4. Not found     - foreign key resolves to nothing
  5. Store failure - persistence medium unreachable or rejected the write

USAGE:
  if errors.Is(err, production.ErrInsufficientAvailability) {
      var ia *production.InsufficientAvailabilityError
      errors.As(err, &ia)
      fmt.Printf("only %d available\n", ia.Available)
  }
*/
package production

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation               = errors.New("validation failed")
	ErrDuplicateID              = errors.New("duplicate id")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrNotFound                 = errors.New("not found")
	ErrStoreFailure             = errors.New("store failure")

	// ErrInvalidPeriod is returned when a report range ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrUnknownStage is returned by ValidateAndBuild for an unsupported stage.
	ErrUnknownStage = errors.New("unknown stage")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DuplicateIDError reports an id collision within a collection.
type DuplicateIDError struct {
	Collection Collection
	ID         string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: id %q already exists", e.Collection, e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// InsufficientAvailabilityError reports how much was actually left.
type InsufficientAvailabilityError struct {
	Stage     Stage
	Available int
	Requested int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("insufficient availability for %s: available %d, requested %d",
		e.Stage, e.Available, e.Requested)
}

func (e *InsufficientAvailabilityError) Unwrap() error { return ErrInsufficientAvailability }

// NotFoundError reports a reference that resolves to nothing.
type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StoreError wraps a persistence failure. It matches ErrStoreFailure and
// still unwraps to the driver error.
type StoreError struct {
	Op         string
	Collection Collection
	Err        error
}

func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// NewStoreError wraps err unless it already carries a domain meaning.
func NewStoreError(op string, c Collection, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateID) || errors.Is(err, ErrStoreFailure) {
		return err
	}
	return &StoreError{Op: op, Collection: c, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrInsufficientAvailability) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrUnknownStage)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsStoreFailure(err error) bool { return errors.Is(err, ErrStoreFailure) }
