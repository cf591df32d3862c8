package domain

import "fmt"

// ValidationError reports a client-supplied value that the engine rejected
// before it ever reached the algorithmic core. The boundary use cases return
// these; inside the core, recurrence expansion and schedule evaluation also
// return one (InvalidTimezone) for an unknown timezone name.
type ValidationError struct {
	Code string // e.g. "InvalidInterval", "InvalidDate", "InvalidRecurrenceRule"
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a lookup that found nothing, carrying enough context
// for the boundary to format a 404-shaped response.
type NotFoundError struct {
	Entity string
	ID     ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %q was not found", e.Entity, e.ID)
}

// NewNotFoundError builds a NotFoundError for the given entity kind and id.
func NewNotFoundError(entity string, id ID) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// StorageError wraps an opaque failure from a repository. The core treats
// these as fatal for the current use case; only reminder dispatch treats a
// single delivery failure as non-fatal (logged and dropped, not a
// StorageError).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err with the operation that failed.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
