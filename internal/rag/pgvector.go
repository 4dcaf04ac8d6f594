package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// validTable restricts table names to plain SQL identifiers since they are
// interpolated into DDL.
var validTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PgvectorConfig holds connection parameters for a Postgres + pgvector store.
type PgvectorConfig struct {
	// DSN is the Postgres connection string.
	DSN string
	// Table is the table that holds embeddings (default: libgen_embeddings).
	Table string
	// Dimension is the fixed vector size of the embedding column.
	Dimension int
}

// PgvectorStore implements VectorStore on Postgres with the pgvector
// extension. Similarity search uses the cosine distance operator and is
// ordered by ID on ties.
type PgvectorStore struct {
	// pool is the pgx connection pool.
	pool *pgxpool.Pool
	// cfg holds the resolved configuration.
	cfg PgvectorConfig
}

// NewPgvectorStore connects to Postgres, enables the vector extension, and
// creates the embeddings table if needed.
func NewPgvectorStore(ctx context.Context, cfg PgvectorConfig) (*PgvectorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN must be set")
	}
	if cfg.Table == "" {
		cfg.Table = "libgen_embeddings"
	}
	if !validTable.MatchString(cfg.Table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", cfg.Table)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("pgvector: dimension must be positive")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}

	s := &PgvectorStore{pool: pool, cfg: cfg}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the extension, table and index if they do not already exist.
func (s *PgvectorStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: create extension: %w", err)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id          BIGSERIAL   PRIMARY KEY,
    text        TEXT        NOT NULL,
    embedding   vector(%[2]d) NOT NULL,
    metadata    JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_created_idx ON %[1]s (created_at);`, s.cfg.Table, s.cfg.Dimension)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	return nil
}

// checkDimension rejects vectors that do not match the column size.
func (s *PgvectorStore) checkDimension(n int) error {
	if n == 0 {
		return ErrEmptyVector
	}
	if n != s.cfg.Dimension {
		return fmt.Errorf("%w: table has %d, got %d", ErrDimensionMismatch, s.cfg.Dimension, n)
	}
	return nil
}

// Insert stores one embedding and returns its ID.
func (s *PgvectorStore) Insert(ctx context.Context, text string, vector []float32, meta Metadata) (int64, error) {
	if err := s.checkDimension(len(vector)); err != nil {
		return 0, fmt.Errorf("pgvector: insert: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("pgvector: marshal metadata: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s (text, embedding, metadata) VALUES ($1, $2, $3) RETURNING id`, s.cfg.Table)
	var id int64
	if err := s.pool.QueryRow(ctx, q, text, pgvector.NewVector(vector), metaJSON).Scan(&id); err != nil {
		return 0, fmt.Errorf("pgvector: insert: %w", err)
	}
	return id, nil
}

// Search returns the k nearest records by cosine distance.
func (s *PgvectorStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if err := s.checkDimension(len(query)); err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	if k <= 0 {
		return nil, nil
	}

	// Cosine distance is NaN for zero-norm vectors, which Postgres sorts last.
	// A zero query matches everything at similarity 0, so order by id alone.
	q := fmt.Sprintf(`
SELECT id, text, metadata, 1 - (embedding <=> $1) AS similarity
FROM   %s
ORDER  BY embedding <=> $1, id
LIMIT  $2`, s.cfg.Table)
	args := []any{pgvector.NewVector(query), k}
	if zeroNorm(query) {
		q = fmt.Sprintf(`
SELECT id, text, metadata, 0::float8 AS similarity
FROM   %s
ORDER  BY id
LIMIT  $1`, s.cfg.Table)
		args = []any{k}
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r        SearchResult
			metaJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &metaJSON, &r.Similarity); err != nil {
			return nil, fmt.Errorf("pgvector: search scan: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("pgvector: record %d metadata: %w", r.ID, err)
			}
		}
		r.Similarity = clampSimilarity(r.Similarity)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	return topK(results, k), nil
}

// Clear deletes every record. The ID sequence is not reset.
func (s *PgvectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.cfg.Table)); err != nil {
		return fmt.Errorf("pgvector: clear: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *PgvectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.cfg.Table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgvector: count: %w", err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *PgvectorStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgvector: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() error {
	s.pool.Close()
	return nil
}
