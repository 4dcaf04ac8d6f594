// Package rag implements the context subsystem of the generator: vector
// storage, similarity search, and the ContextManager that indexes acquired
// material and assembles token-budgeted context for a query.
// Concrete stores (SQLite, Qdrant, pgvector) satisfy VectorStore so the
// workflow layer never depends on a specific backend.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ChunkType categorises indexed content by where it came from.
type ChunkType string

const (
	// TypeDocumentation marks chunks cut from crawled documentation pages.
	TypeDocumentation ChunkType = "documentation"
	// TypeReadme marks chunks cut from a repository README.
	TypeReadme ChunkType = "readme"
	// TypeCodeExample marks a single extracted code snippet. Examples are
	// never re-chunked.
	TypeCodeExample ChunkType = "code_example"
)

// SourceReadme is the provenance recorded for README chunks.
const SourceReadme = "github_readme"

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the
	// dimension fixed for the store.
	ErrDimensionMismatch = errors.New("rag: vector dimension mismatch")

	// ErrEmptyVector is returned when inserting or searching with a zero-length vector.
	ErrEmptyVector = errors.New("rag: empty vector")
)

// Chunk is a bounded unit of text with its provenance and category.
type Chunk struct {
	// Text is the chunk content.
	Text string
	// Source is a free-form provenance string (URL, "github_readme", "example_3").
	Source string
	// Type is the content category.
	Type ChunkType
}

// Metadata is the key/value mapping persisted alongside every embedding.
type Metadata struct {
	// Source is the chunk provenance.
	Source string `json:"source"`
	// Type is the chunk category.
	Type ChunkType `json:"type"`
}

// Record is a stored embedding as returned by a store.
type Record struct {
	// ID is the store-assigned identifier. IDs increase strictly with
	// insertion order.
	ID int64
	// Text is the stored chunk text.
	Text string
	// Vector is the stored embedding.
	Vector []float32
	// Metadata holds the chunk source and type.
	Metadata Metadata
	// CreatedAt is when the record was inserted.
	CreatedAt time.Time
}

// SearchResult is a single similarity search hit.
type SearchResult struct {
	// ID is the matching record's identifier.
	ID int64
	// Text is the matching record's chunk text.
	Text string
	// Similarity is the cosine similarity to the query, in [-1, 1].
	Similarity float64
	// Metadata holds the chunk source and type.
	Metadata Metadata
}

// VectorStore persists embeddings and answers top-k cosine similarity
// queries. Implementations must be safe to call from multiple goroutines and
// must make each Insert atomic.
type VectorStore interface {
	// Insert stores one embedding and returns its assigned ID.
	Insert(ctx context.Context, text string, vector []float32, meta Metadata) (int64, error)

	// Search returns at most k results ordered by non-increasing similarity.
	// Equal similarities are ordered by ascending ID.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne embeds a single text with e.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for one text", len(vecs))
	}
	return vecs[0], nil
}
