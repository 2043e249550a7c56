package models

import (
	"strings"
	"time"
)

type TaskState string

const (
	TaskStateActive    TaskState = "active"
	TaskStateCompleted TaskState = "completed"
	TaskStateCancelled TaskState = "cancelled"
	TaskStateDeferred  TaskState = "deferred"
)

// Terminal reports whether no further transitions are permitted from s.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateCancelled
}

// Valid reports whether s is one of the four known states.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateActive, TaskStateCompleted, TaskStateCancelled, TaskStateDeferred:
		return true
	}
	return false
}

// Task is the current-state projection of a unit of work. The event log is
// the source of truth for its history; this row is kept consistent with it
// by writing both in the same transaction.
type Task struct {
	ID            string     `json:"id"`
	Description   string     `json:"description"`
	State         TaskState  `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	DeferredAt    *time.Time `json:"deferred_at,omitempty"`
	DeferReason   *string    `json:"defer_reason,omitempty"`
	DeferredUntil *time.Time `json:"deferred_until,omitempty"`
}

// ValidDescription reports whether s is a usable task description.
func ValidDescription(s string) bool {
	return strings.TrimSpace(s) != ""
}
