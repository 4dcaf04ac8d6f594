package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultSQLitePath is the default location of the local vector database.
const DefaultSQLitePath = "./data/vector_store.db"

// SQLiteStore is a VectorStore backed by a local SQLite database. Search is a
// linear scan over every stored vector, which is adequate for the few
// thousand chunks a single library's documentation produces.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// mu guards dim.
	mu sync.Mutex
	// dim is the fixed vector dimension; 0 until configured or learned from
	// the first stored vector.
	dim int
}

// OpenSQLite opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
// A positive dimension fixes the vector size up front; otherwise it is taken
// from existing rows or from the first insert.
func OpenSQLite(path string, dimension int) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite store: create %s: %w", dir, err)
			}
		}
	}

	// WAL mode lets searches read while an insert is in flight.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	// Single connection: every insert is serialised, so concurrent indexing
	// runs cannot interleave partial rows.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dim: dimension}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadDimension(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS embeddings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    text        TEXT    NOT NULL,
    embedding   BLOB    NOT NULL,  -- little-endian float32
    metadata    TEXT,              -- JSON {"source":..., "type":...}
    created_at  INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_created
    ON embeddings (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return nil
}

// loadDimension learns the vector size from the oldest stored row and checks
// it against a configured dimension.
func (s *SQLiteStore) loadDimension() error {
	var n int
	err := s.db.QueryRow(`SELECT length(embedding) FROM embeddings ORDER BY id LIMIT 1`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sqlite store: read dimension: %w", err)
	}
	stored := n / 4
	if s.dim > 0 && s.dim != stored {
		return fmt.Errorf("sqlite store: configured dimension %d, stored vectors have %d: %w",
			s.dim, stored, ErrDimensionMismatch)
	}
	s.dim = stored
	return nil
}

// Dimension returns the fixed vector size, or 0 if not yet known.
func (s *SQLiteStore) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// checkDimension validates n against the store dimension. When learn is set
// and no dimension is fixed yet, n becomes the store dimension.
func (s *SQLiteStore) checkDimension(n int, learn bool) error {
	if n == 0 {
		return ErrEmptyVector
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim == 0 {
		if learn {
			s.dim = n
		}
		return nil
	}
	if s.dim != n {
		return fmt.Errorf("%w: store has %d, got %d", ErrDimensionMismatch, s.dim, n)
	}
	return nil
}

// Insert persists one embedding in a single statement and returns its ID.
func (s *SQLiteStore) Insert(ctx context.Context, text string, vector []float32, meta Metadata) (int64, error) {
	if err := s.checkDimension(len(vector), true); err != nil {
		return 0, fmt.Errorf("sqlite store: insert: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("sqlite store: marshal metadata: %w", err)
	}

	const q = `INSERT INTO embeddings (text, embedding, metadata, created_at) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, text, encodeVector(vector), string(metaJSON), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite store: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite store: insert id: %w", err)
	}
	return id, nil
}

// Search scans every stored vector and returns the k most similar.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if err := s.checkDimension(len(query), false); err != nil {
		return nil, fmt.Errorf("sqlite store: search: %w", err)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding, metadata FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r        SearchResult
			blob     []byte
			metaJSON sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Text, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("sqlite store: search scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: record %d: %w", r.ID, err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &r.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite store: record %d metadata: %w", r.ID, err)
			}
		}
		r.Similarity = Cosine(query, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: search rows: %w", err)
	}

	return topK(results, k), nil
}

// Clear deletes every record. IDs keep increasing after a clear.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("sqlite store: clear: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite store: count: %w", err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite store: close: %w", err)
	}
	return nil
}
