package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the version the database is migrated to on Open.
const SchemaVersion = 2

const busyTimeoutMs = 5000

// DB owns the on-disk database file. It is the only component that touches
// the file; everything else goes through it.
type DB struct {
	*sql.DB
	onChange   func(ctx context.Context)
	onChangeMu sync.RWMutex
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SetOnChange registers a hook fired after every committed write transaction.
// The bridge notifier hangs off this.
func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = fn
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	fn := db.onChange
	db.onChangeMu.RUnlock()

	if fn != nil {
		fn(ctx)
	}
}

// Open opens or creates the SQLite database at the given path and migrates
// it to the current schema version. The returned handle is ready for use.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %v", ErrStorageUnavailable, err)
		}
	}

	// _txlock=immediate makes every write transaction take the write lock up
	// front, so check-then-write sequences from concurrent CLI invocations
	// are strictly ordered instead of interleaved. busy_timeout and
	// foreign_keys are per-connection state; carrying them in the DSN means
	// the driver reapplies them to every connection the pool opens.
	dsn := path + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		fmt.Sprintf("&_pragma=busy_timeout(%d)", busyTimeoutMs) +
		"&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorageUnavailable, err)
	}

	// sql.Open is lazy; force a connection so the file exists before the
	// permission fixup below.
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: open database: %v", ErrStorageUnavailable, err)
	}

	// SQLite works best with a single writer.
	sqlDB.SetMaxOpenConns(1)

	if path != ":memory:" {
		// Owner-only, same as the directories around it.
		if err := os.Chmod(path, 0o600); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%w: set database permissions: %v", ErrStorageUnavailable, err)
		}
	}

	db := &DB{DB: sqlDB}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// WithTx runs fn inside an exclusive write transaction. The transaction is
// rolled back unless fn returns nil; on any error no writes are visible.
// A successful commit fires the change hook.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", ErrStorageUnavailable, err)
	}

	db.triggerChange(ctx)
	return nil
}
