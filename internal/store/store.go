// Package store provides a SQLite-backed history of generation runs. Each
// record captures the library, task, outcome, and generated code so earlier
// results can be listed and recovered without re-running the workflow.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Run is a single persisted generation run.
type Run struct {
	// ID is the database row id, assigned by Append.
	ID int64
	// Library is the target library name.
	Library string
	// Task is the user's request.
	Task string
	// Language is the target programming language.
	Language string
	// Confidence is the validation score of the run.
	Confidence float64
	// Iterations is the number of stages executed.
	Iterations int
	// Warnings is the number of degraded steps.
	Warnings int
	// Code is the generated code.
	Code string
	// CreatedAt is when the run was persisted.
	CreatedAt time.Time
}

// HistoryStore persists and lists generation runs. Implementations must be
// safe for concurrent use.
type HistoryStore interface {
	// Append persists a run and returns its id.
	Append(ctx context.Context, run Run) (int64, error)
	// Recent returns up to n runs, newest first. An empty library matches all.
	Recent(ctx context.Context, library string, n int) ([]Run, error)
	// Get returns the run with the given id.
	Get(ctx context.Context, id int64) (Run, error)
	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned by Get when no run has the requested id.
var ErrNotFound = fmt.Errorf("store: run not found")

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.libgen/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".libgen")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    library     TEXT    NOT NULL,
    task        TEXT    NOT NULL,
    language    TEXT    NOT NULL,
    confidence  REAL    NOT NULL,
    iterations  INTEGER NOT NULL,
    warnings    INTEGER NOT NULL,
    code        TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_runs_library_created
    ON runs (library, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a run. A zero CreatedAt is set to now.
func (s *SQLiteStore) Append(ctx context.Context, run Run) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	const q = `INSERT INTO runs (library, task, language, confidence, iterations, warnings, code, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, run.Library, run.Task, run.Language, run.Confidence,
		run.Iterations, run.Warnings, run.Code, run.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("store: append: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: append id: %w", err)
	}
	return id, nil
}

// Recent returns up to n runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, library string, n int) ([]Run, error) {
	const q = `
SELECT id, library, task, language, confidence, iterations, warnings, code, created_at
FROM   runs
WHERE  (? = '' OR library = ?)
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, library, library, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return runs, nil
}

// Get returns the run with the given id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (Run, error) {
	const q = `
SELECT id, library, task, language, confidence, iterations, warnings, code, created_at
FROM   runs WHERE id = ?`
	r, err := scanRun(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: get %d: %w", id, err)
	}
	return r, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var ts int64
	err := sc.Scan(&r.ID, &r.Library, &r.Task, &r.Language, &r.Confidence,
		&r.Iterations, &r.Warnings, &r.Code, &ts)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(ts, 0)
	return r, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
