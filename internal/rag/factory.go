package rag

import (
	"context"
	"fmt"
)

// Backend identifies a VectorStore implementation.
type Backend string

const (
	// BackendSQLite is the local, file-backed default store.
	BackendSQLite Backend = "sqlite"
	// BackendQdrant stores vectors in a Qdrant collection.
	BackendQdrant Backend = "qdrant"
	// BackendPgvector stores vectors in Postgres with the pgvector extension.
	BackendPgvector Backend = "pgvector"
)

// StoreConfig selects and configures a VectorStore.
type StoreConfig struct {
	// Backend selects the implementation. Empty means BackendSQLite.
	Backend Backend
	// Dimension is the embedding vector size. Required for qdrant and
	// pgvector; optional for sqlite, which can learn it from the first insert.
	Dimension int
	// SQLitePath is the database file for BackendSQLite.
	SQLitePath string
	// Qdrant holds connection settings for BackendQdrant.
	Qdrant QdrantConfig
	// PgvectorDSN is the Postgres connection string for BackendPgvector.
	PgvectorDSN string
	// PgvectorTable overrides the default embeddings table name.
	PgvectorTable string
}

// OpenStore constructs the VectorStore selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg StoreConfig) (VectorStore, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = DefaultSQLitePath
		}
		return OpenSQLite(path, cfg.Dimension)

	case BackendQdrant:
		qc := cfg.Qdrant
		qc.VectorSize = uint64(cfg.Dimension)
		return NewQdrantStore(ctx, &qc)

	case BackendPgvector:
		return NewPgvectorStore(ctx, PgvectorConfig{
			DSN:       cfg.PgvectorDSN,
			Table:     cfg.PgvectorTable,
			Dimension: cfg.Dimension,
		})

	default:
		return nil, fmt.Errorf("rag: unknown vector backend %q (valid: sqlite, qdrant, pgvector)", cfg.Backend)
	}
}
