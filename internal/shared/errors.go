package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the current status does not allow the requested transition.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrInvalidQuantity indicates a negative quantity or more returned than delivered.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrStoreClosed indicates the store is not accepting submissions.
	ErrStoreClosed = errors.New("store is not accepting submissions")
	// ErrStorage indicates a transient infrastructure failure; the call made no changes.
	ErrStorage = errors.New("storage unavailable")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller may not act on the resource.
	ErrForbidden = errors.New("forbidden")
)

// StorageError wraps a driver failure so callers can match ErrStorage while logs keep the cause.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err unless it is nil or already classified.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) || errors.Is(err, ErrInvalidState) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports ErrStorage equivalence.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
