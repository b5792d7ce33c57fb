package types

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds surfaced to the request layer. Use errors.Is to classify.
var (
	ErrNotFound           = errors.New("not found")
	ErrCircularDependency = errors.New("circular dependency")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrStoreFailure       = errors.New("store failure")
)

// Narrower errors, each matching one of the kinds above.
var (
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrDependencyNotFound = fmt.Errorf("dependency %w", ErrNotFound)
	ErrSelfDependency     = fmt.Errorf("%w: task cannot depend on itself (%w)", ErrInvalidArgument, ErrCircularDependency)
)

// StoreError wraps a failure reported by the persistence layer.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: failed to %s: %v", ErrStoreFailure, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStoreFailure.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// WrapStore classifies err as a store failure unless it is nil, a context
// error, or already carries one of the domain kinds.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStoreFailure) ||
		errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrCircularDependency) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
