package db

import (
	"context"
	"fmt"
)

// migrate brings the schema up to SchemaVersion. It is idempotent: each step
// checks what already exists before changing anything, and the version is
// recorded in PRAGMA user_version only once all steps have applied.
func (db *DB) migrate(ctx context.Context) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %v", ErrStorageUnavailable, err)
	}

	if version >= SchemaVersion {
		return nil
	}

	if version < 1 {
		if err := db.migrateToV1(ctx); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := db.migrateToV2(ctx); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("%w: record schema version: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// migrateToV1 creates the initial tasks and task_events tables.
func (db *DB) migrateToV1(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL CHECK (length(trim(description)) > 0),
	state TEXT NOT NULL CHECK (state IN ('active', 'completed', 'cancelled', 'deferred')),
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	completed_at TEXT
);

CREATE TABLE IF NOT EXISTS task_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL CHECK (event_type IN ('CREATED', 'COMPLETED', 'CANCELLED', 'DEFERRED', 'RESUMED')),
	timestamp TEXT NOT NULL,
	metadata TEXT
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate to v1: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// migrateToV2 adds the cancellation and deferral columns plus the indexes
// backing active-task lookup and per-task history queries.
func (db *DB) migrateToV2(ctx context.Context) error {
	existing, err := db.tableColumns(ctx, "tasks")
	if err != nil {
		return err
	}

	columns := []string{"cancelled_at", "cancel_reason", "deferred_at", "defer_reason", "deferred_until"}
	for _, col := range columns {
		if existing[col] {
			continue
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE tasks ADD COLUMN %s TEXT", col)); err != nil {
			return fmt.Errorf("%w: migrate to v2: add %s: %v", ErrStorageUnavailable, col, err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state)",
		"CREATE INDEX IF NOT EXISTS idx_task_events_task_id ON task_events(task_id)",
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("%w: migrate to v2: %v", ErrStorageUnavailable, err)
		}
	}
	return nil
}

func (db *DB) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("%w: read table info: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("%w: scan table info: %v", ErrStorageUnavailable, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read table info: %v", ErrStorageUnavailable, err)
	}
	return cols, nil
}
