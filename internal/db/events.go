package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/focal/pkg/models"
)

// AppendEventTx appends one event within an open transaction and returns the
// assigned sequence ID. Events are only ever written alongside the task-row
// mutation they describe, in the same transaction.
func (db *DB) AppendEventTx(ctx context.Context, tx *sql.Tx, e *models.TaskEvent) (int64, error) {
	query := `
		INSERT INTO task_events (task_id, event_type, timestamp, metadata)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`
	var id int64
	err := tx.QueryRowContext(ctx, query, e.TaskID, e.EventType, formatTime(e.Timestamp), e.Metadata).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: append event: %v", ErrStorageUnavailable, err)
	}
	e.ID = id
	return id, nil
}

// ListEvents returns events ordered by sequence ID ascending, which matches
// temporal order. An empty taskID returns the full log.
func (db *DB) ListEvents(ctx context.Context, taskID string) ([]*models.TaskEvent, error) {
	query := "SELECT id, task_id, event_type, timestamp, metadata FROM task_events"
	args := []any{}
	if taskID != "" {
		query += " WHERE task_id = ?"
		args = append(args, taskID)
	}
	query += " ORDER BY id ASC"
	return db.queryEvents(ctx, query, args...)
}

// ListRecentEvents returns the newest limit events in ascending order, for
// the monitor's history pane.
func (db *DB) ListRecentEvents(ctx context.Context, limit int) ([]*models.TaskEvent, error) {
	query := `
		SELECT id, task_id, event_type, timestamp, metadata
		FROM (SELECT id, task_id, event_type, timestamp, metadata
		      FROM task_events ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC
	`
	return db.queryEvents(ctx, query, limit)
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...any) ([]*models.TaskEvent, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var events []*models.TaskEvent
	for rows.Next() {
		e := &models.TaskEvent{}
		var ts string
		var metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.TaskID, &e.EventType, &ts, &metadata); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", ErrStorageUnavailable, err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		e.Metadata = stringPtr(metadata)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ErrStorageUnavailable, err)
	}
	return events, nil
}
