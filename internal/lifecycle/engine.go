// Package lifecycle enforces the task state machine and the single-focus
// invariant: at most one task is active at any instant. It is the only
// component that mutates task state, and every transition writes the task
// row and its audit event in one transaction.
package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ldi/focal/internal/db"
	"github.com/ldi/focal/pkg/models"
)

type Engine struct {
	db *db.DB
}

func New(database *db.DB) *Engine {
	return &Engine{db: database}
}

// Create makes a new active task. It fails with ErrActiveTaskConflict if
// another task is active; tasks are never created directly into deferred.
func (e *Engine) Create(ctx context.Context, description string) (*models.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description cannot be empty", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	t := &models.Task{
		ID:          uuid.New().String(),
		Description: description,
		State:       models.TaskStateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		active, err := e.db.GetActiveTaskTx(ctx, tx)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("%w: %q", ErrActiveTaskConflict, active.Description)
		}
		if err := e.db.InsertTaskTx(ctx, tx, t); err != nil {
			return err
		}
		_, err = e.db.AppendEventTx(ctx, tx, &models.TaskEvent{
			TaskID:    t.ID,
			EventType: models.EventCreated,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Complete marks a task completed. An empty taskID targets the active task.
func (e *Engine) Complete(ctx context.Context, taskID string) (*models.Task, error) {
	now := time.Now().UTC()
	var out *models.Task

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := e.resolveTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.State.Terminal() {
			return fmt.Errorf("%w: task is already %s", ErrTerminalState, t.State)
		}
		if t.State != models.TaskStateActive {
			return fmt.Errorf("%w: cannot complete a %s task", ErrInvalidTransition, t.State)
		}

		t.State = models.TaskStateCompleted
		t.UpdatedAt = now
		t.CompletedAt = &now
		if err := e.db.UpdateTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if _, err := e.db.AppendEventTx(ctx, tx, &models.TaskEvent{
			TaskID:    t.ID,
			EventType: models.EventCompleted,
			Timestamp: now,
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel marks a task cancelled, recording an optional reason. Allowed from
// active and deferred. An empty taskID targets the active task.
func (e *Engine) Cancel(ctx context.Context, taskID, reason string) (*models.Task, error) {
	reason = strings.TrimSpace(reason)
	now := time.Now().UTC()
	var out *models.Task

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := e.resolveTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.State.Terminal() {
			return fmt.Errorf("%w: task is already %s", ErrTerminalState, t.State)
		}

		t.State = models.TaskStateCancelled
		t.UpdatedAt = now
		t.CancelledAt = &now
		if reason != "" {
			t.CancelReason = &reason
		}
		clearDeferral(t)
		if err := e.db.UpdateTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if _, err := e.db.AppendEventTx(ctx, tx, &models.TaskEvent{
			TaskID:    t.ID,
			EventType: models.EventCancelled,
			Timestamp: now,
			Metadata:  eventMetadata(reason, nil),
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Defer parks the active task until a later time. until may be nil (no
// target time); a past until is rejected before any write. An empty taskID
// targets the active task.
func (e *Engine) Defer(ctx context.Context, taskID string, until *time.Time, reason string) (*models.Task, error) {
	reason = strings.TrimSpace(reason)
	now := time.Now().UTC()
	if until != nil && until.Before(now) {
		return nil, fmt.Errorf("%w: deferral time is in the past", ErrInvalidArgument)
	}

	var out *models.Task
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := e.resolveTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.State.Terminal() {
			return fmt.Errorf("%w: task is already %s", ErrTerminalState, t.State)
		}
		if t.State != models.TaskStateActive {
			return fmt.Errorf("%w: cannot defer a %s task", ErrInvalidTransition, t.State)
		}

		t.State = models.TaskStateDeferred
		t.UpdatedAt = now
		t.DeferredAt = &now
		t.DeferredUntil = until
		if reason != "" {
			t.DeferReason = &reason
		}
		if err := e.db.UpdateTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if _, err := e.db.AppendEventTx(ctx, tx, &models.TaskEvent{
			TaskID:    t.ID,
			EventType: models.EventDeferred,
			Timestamp: now,
			Metadata:  eventMetadata(reason, until),
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resume brings a deferred task back to active. Fails closed with
// ErrActiveTaskConflict when another task is active; the incumbent is never
// deferred implicitly.
func (e *Engine) Resume(ctx context.Context, taskID string) (*models.Task, error) {
	now := time.Now().UTC()
	var out *models.Task

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := e.db.GetTaskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%w: %s", db.ErrTaskNotFound, taskID)
		}
		if t.State.Terminal() {
			return fmt.Errorf("%w: task is already %s", ErrTerminalState, t.State)
		}
		if t.State != models.TaskStateDeferred {
			return fmt.Errorf("%w: cannot resume a %s task", ErrInvalidTransition, t.State)
		}

		active, err := e.db.GetActiveTaskTx(ctx, tx)
		if err != nil {
			return err
		}
		if active != nil && active.ID != t.ID {
			return fmt.Errorf("%w: %q", ErrActiveTaskConflict, active.Description)
		}

		t.State = models.TaskStateActive
		t.UpdatedAt = now
		clearDeferral(t)
		if err := e.db.UpdateTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if _, err := e.db.AppendEventTx(ctx, tx, &models.TaskEvent{
			TaskID:    t.ID,
			EventType: models.EventResumed,
			Timestamp: now,
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolveTx loads the target task: the given ID, or the active task when the
// ID is empty.
func (e *Engine) resolveTx(ctx context.Context, tx *sql.Tx, taskID string) (*models.Task, error) {
	if taskID == "" {
		t, err := e.db.GetActiveTaskTx(ctx, tx)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("%w: no active task", db.ErrTaskNotFound)
		}
		return t, nil
	}

	t, err := e.db.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", db.ErrTaskNotFound, taskID)
	}
	return t, nil
}

func clearDeferral(t *models.Task) {
	t.DeferredAt = nil
	t.DeferReason = nil
	t.DeferredUntil = nil
}

// EventMeta is the structured payload attached to CANCELLED and DEFERRED
// events. It is opaque to the engine and stored for audit.
type EventMeta struct {
	Reason string `json:"reason,omitempty"`
	Until  string `json:"until,omitempty"`
}

func eventMetadata(reason string, until *time.Time) *string {
	meta := EventMeta{Reason: reason}
	if until != nil {
		meta.Until = until.UTC().Format(time.RFC3339Nano)
	}
	if meta.Reason == "" && meta.Until == "" {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}
