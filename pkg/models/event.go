package models

import "time"

type EventType string

const (
	EventCreated   EventType = "CREATED"
	EventCompleted EventType = "COMPLETED"
	EventCancelled EventType = "CANCELLED"
	EventDeferred  EventType = "DEFERRED"
	EventResumed   EventType = "RESUMED"
)

// TaskEvent is one immutable fact in a task's audit trail. IDs are assigned
// by the database in insertion order, so ordering by ID matches temporal
// order.
type TaskEvent struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  *string   `json:"metadata,omitempty"`
}
