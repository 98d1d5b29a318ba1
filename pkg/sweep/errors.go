package sweep

import (
	"errors"
	"fmt"
)

// CorruptStoreError reports a persisted document or row that exists but
// cannot be decoded. It is never retried: the run stops and the operator has
// to fix or restore the resource.
type CorruptStoreError struct {
	// Resource identifies the damaged store (file path, table, hash key)
	Resource string

	// Key is the offending record key, if the damage is local to one record
	Key string

	// Cause is the underlying decode error
	Cause error
}

func (e *CorruptStoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("corrupt store %s (key %q): %v", e.Resource, e.Key, e.Cause)
	}
	return fmt.Sprintf("corrupt store %s: %v", e.Resource, e.Cause)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Cause
}

// StoreError wraps an I/O failure of a store operation. Store failures are
// global: the coordinator stops every worker when one is returned.
type StoreError struct {
	// Op is the failed operation ("load", "save", "merge", "lock")
	Op string

	// Resource identifies the store
	Resource string

	// Cause is the underlying error
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Resource, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// WorkerError attributes a fatal error to the worker that hit it.
type WorkerError struct {
	WorkerID int
	Cause    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d: %v", e.WorkerID, e.Cause)
}

func (e *WorkerError) Unwrap() error {
	return e.Cause
}

// IsCorrupt reports whether err (or anything it wraps) is a corrupt-store
// error.
func IsCorrupt(err error) bool {
	var ce *CorruptStoreError
	return errors.As(err, &ce)
}

// Common sentinel errors
var (
	// ErrInvalidConfig is returned by Run when the configuration is unusable
	ErrInvalidConfig = errors.New("invalid sweep configuration")

	// ErrInvalidCandidate is returned when a value is not a 1-9 digit string
	ErrInvalidCandidate = errors.New("invalid candidate")

	// ErrLockTimeout is returned when a named lock cannot be acquired in time
	ErrLockTimeout = errors.New("timed out acquiring store lock")
)
