package shared

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a document number already used for the same kind.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation marks extracted or submitted fields that need user correction.
	ErrValidation = errors.New("validation failed")
	// ErrIllegalTransition marks a workflow action not allowed from the current status.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrInsufficientData is returned when a forecast lacks purchase history.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrExternalService marks failures of the document extraction provider.
	ErrExternalService = errors.New("external service failure")
	// ErrPersistence wraps storage failures that are neither not-found nor duplicate.
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError carries the failing gateway operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports ErrPersistence so callers can branch without unwrapping.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence wraps err as a persistence failure unless it already carries a taxonomy kind or
// a context cancellation.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range passthrough {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

var passthrough = []error{
	ErrNotFound, ErrDuplicate, ErrValidation, ErrIllegalTransition,
	ErrInsufficientData, ErrExternalService, ErrPersistence,
	context.Canceled, context.DeadlineExceeded,
}
