package db

import "errors"

// Failure classes surfaced by the storage layer. Callers dispatch on these
// with errors.Is; the wrapped message carries the detail.
var (
	// ErrStorageUnavailable covers an unreachable, unwritable, or corrupt
	// database file, and write locks that could not be acquired within the
	// busy timeout. Not locally recoverable.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDataIntegrity means persisted data violates an invariant the engine
	// should have enforced (for example two active tasks). It indicates a bug
	// or external tampering and is surfaced, never silently patched.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrTaskNotFound is returned when an operation references a task that
	// does not exist (or no task is active when one is required).
	ErrTaskNotFound = errors.New("task not found")
)
