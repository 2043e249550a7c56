// Package bridge carries change signals from short-lived CLI processes to a
// long-running monitor. The channel is a marker file in the runtime
// directory: writers touch it after every committed transaction, watchers
// notice the touch and reload from the database. Signals are advisory; the
// database remains the sole source of truth and a missed signal costs at
// most one poll interval of staleness.
package bridge

import (
	"context"
	"time"
)

// Notifier announces that the database changed. Implementations must be
// fire-and-forget: a transition must never fail or block because nobody is
// listening.
type Notifier interface {
	Notify(ctx context.Context)
}

// Watcher delivers change signals to a consumer. Wait blocks until a signal
// arrives, the timeout elapses, or ctx is done; it reports whether a signal
// was the cause. Spurious wakeups are acceptable; missed signals are
// covered by the caller's poll cadence.
type Watcher interface {
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
	Close() error
}

// NopNotifier discards notifications. Used when no runtime directory is
// available; the monitor then runs on polling alone.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context) {}
