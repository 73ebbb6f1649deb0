package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"roombook/internal/conflict"
	"roombook/internal/model"
)

// ConflictMessage is shown to users when a slot is taken.
const ConflictMessage = "This time slot is already booked. Please choose a different time."

var (
	ErrNotFound = model.ErrNotFound
	ErrInUse    = model.ErrInUse
)

// ValidationError lists rejected request fields. Nothing was persisted.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a problem with field.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// HasErrors reports whether any field was rejected.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) orNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError means the requested slot overlaps a stored booking. The caller
// should pick a different time; the service never retries.
type ConflictError struct {
	// Conflicts is filled when the clash was found before writing.
	Conflicts []conflict.Conflict
	// FromStorage is set when the store rejected the write after the pre-check passed.
	FromStorage bool
	Err         error
}

func (e *ConflictError) Error() string {
	if e.FromStorage {
		return "booking conflict detected by storage: " + ConflictMessage
	}
	return fmt.Sprintf("booking conflict: %d overlapping reservation(s): %s", len(e.Conflicts), ConflictMessage)
}

func (e *ConflictError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return model.ErrOverlap
}

// PersistenceError wraps any other failure of the store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// storeError classifies an error returned by the repository.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, model.ErrOverlap):
		return &ConflictError{FromStorage: true, Err: err}
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrInUse), errors.Is(err, model.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return &PersistenceError{Op: op, Err: err}
	}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err refers to a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
