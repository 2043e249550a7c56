package lifecycle

import "errors"

// Expected, user-facing outcomes of races or misuse. All are recoverable by
// retrying a different, valid operation; none leaves partial writes behind.
var (
	// ErrActiveTaskConflict: a transition would make a task active while
	// another task already is. The engine never auto-resolves this by
	// deactivating the incumbent.
	ErrActiveTaskConflict = errors.New("another task is already active")

	// ErrTerminalState: the task is completed or cancelled and permits no
	// further transitions.
	ErrTerminalState = errors.New("task is in a terminal state")

	// ErrInvalidTransition: the requested transition has no edge in the
	// state machine (for example completing a deferred task).
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidArgument: malformed input, rejected before any write.
	ErrInvalidArgument = errors.New("invalid argument")
)
