package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/focal/pkg/models"
)

const taskColumns = `id, description, state, created_at, updated_at,
	       completed_at, cancelled_at, cancel_reason, deferred_at, defer_reason, deferred_until`

// GetTask retrieves a task by ID, or nil if no such task exists.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return db.getTask(ctx, db.DB, id)
}

// GetTaskTx is GetTask inside an open transaction.
func (db *DB) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (*models.Task, error) {
	return db.getTask(ctx, tx, id)
}

func (db *DB) getTask(ctx context.Context, exec executor, id string) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = ?", taskColumns)
	t, err := scanTask(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetActiveTask returns the task with state = active, or nil when there is
// none. Finding more than one is reported as a data integrity violation
// rather than silently picking one.
func (db *DB) GetActiveTask(ctx context.Context) (*models.Task, error) {
	return db.getActiveTask(ctx, db.DB)
}

// GetActiveTaskTx is GetActiveTask inside an open transaction. Lifecycle
// transitions use it for the single-active check so the check and the write
// happen under the same lock.
func (db *DB) GetActiveTaskTx(ctx context.Context, tx *sql.Tx) (*models.Task, error) {
	return db.getActiveTask(ctx, tx)
}

func (db *DB) getActiveTask(ctx context.Context, exec executor) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE state = ? LIMIT 2", taskColumns)
	tasks, err := queryTasks(ctx, exec, query, models.TaskStateActive)
	if err != nil {
		return nil, err
	}
	switch len(tasks) {
	case 0:
		return nil, nil
	case 1:
		return tasks[0], nil
	default:
		return nil, fmt.Errorf("%w: multiple active tasks found", ErrDataIntegrity)
	}
}

// ListTasks returns tasks ordered by creation time, optionally filtered by
// state. The result is a point-in-time snapshot.
func (db *DB) ListTasks(ctx context.Context, state *models.TaskState) ([]*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks", taskColumns)
	args := []any{}
	if state != nil {
		query += " WHERE state = ?"
		args = append(args, *state)
	}
	query += " ORDER BY created_at ASC"
	return queryTasks(ctx, db.DB, query, args...)
}

// ListDeferredTasks returns deferred tasks oldest deferral first, the order
// the resume command numbers them in.
func (db *DB) ListDeferredTasks(ctx context.Context) ([]*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE state = ? ORDER BY deferred_at ASC", taskColumns)
	return queryTasks(ctx, db.DB, query, models.TaskStateDeferred)
}

// InsertTaskTx writes a new task row within an open transaction.
func (db *DB) InsertTaskTx(ctx context.Context, tx *sql.Tx, t *models.Task) error {
	query := `
		INSERT INTO tasks (id, description, state, created_at, updated_at,
		                   completed_at, cancelled_at, cancel_reason,
		                   deferred_at, defer_reason, deferred_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		t.ID, t.Description, t.State, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		formatTimePtr(t.CompletedAt), formatTimePtr(t.CancelledAt), t.CancelReason,
		formatTimePtr(t.DeferredAt), t.DeferReason, formatTimePtr(t.DeferredUntil),
	)
	if err != nil {
		return fmt.Errorf("%w: insert task: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// UpdateTaskTx rewrites an existing task row within an open transaction.
func (db *DB) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t *models.Task) error {
	query := `
		UPDATE tasks
		SET description = ?, state = ?, updated_at = ?,
		    completed_at = ?, cancelled_at = ?, cancel_reason = ?,
		    deferred_at = ?, defer_reason = ?, deferred_until = ?
		WHERE id = ?
	`
	res, err := tx.ExecContext(ctx, query,
		t.Description, t.State, formatTime(t.UpdatedAt),
		formatTimePtr(t.CompletedAt), formatTimePtr(t.CancelledAt), t.CancelReason,
		formatTimePtr(t.DeferredAt), t.DeferReason, formatTimePtr(t.DeferredUntil),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update task: %v", ErrStorageUnavailable, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update task: %v", ErrStorageUnavailable, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, t.ID)
	}
	return nil
}

func queryTasks(ctx context.Context, exec executor, query string, args ...any) ([]*models.Task, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query tasks: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query tasks: %v", ErrStorageUnavailable, err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var (
		createdAt, updatedAt                 string
		completedAt, cancelledAt             sql.NullString
		cancelReason                         sql.NullString
		deferredAt, deferReason, deferredTil sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Description, &t.State, &createdAt, &updatedAt,
		&completedAt, &cancelledAt, &cancelReason,
		&deferredAt, &deferReason, &deferredTil,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan task: %v", ErrStorageUnavailable, err)
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	if t.CancelledAt, err = parseTimePtr(cancelledAt); err != nil {
		return nil, err
	}
	t.CancelReason = stringPtr(cancelReason)
	if t.DeferredAt, err = parseTimePtr(deferredAt); err != nil {
		return nil, err
	}
	t.DeferReason = stringPtr(deferReason)
	if t.DeferredUntil, err = parseTimePtr(deferredTil); err != nil {
		return nil, err
	}
	return t, nil
}
