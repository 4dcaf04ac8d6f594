package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written with every Qdrant point.
const (
	payloadText      = "text"
	payloadSource    = "source"
	payloadType      = "type"
	payloadCreatedAt = "created_at"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: libgen_context).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
// Qdrant performs the similarity search server-side; results are re-sorted
// locally so equal scores are ordered by ascending ID like the other stores.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// mu guards lastID.
	mu sync.Mutex
	// lastID is the most recently assigned point ID.
	lastID uint64
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "libgen_context"
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying gRPC client for health checks.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// nextID returns a strictly increasing point ID. IDs are derived from the
// wall clock so they keep increasing across process restarts.
func (s *QdrantStore) nextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint64(time.Now().UnixNano())
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// checkDimension rejects vectors that do not match the collection size.
func (s *QdrantStore) checkDimension(n int) error {
	if n == 0 {
		return ErrEmptyVector
	}
	if uint64(n) != s.cfg.VectorSize {
		return fmt.Errorf("%w: collection has %d, got %d", ErrDimensionMismatch, s.cfg.VectorSize, n)
	}
	return nil
}

// Insert upserts a single point and waits for it to be persisted.
func (s *QdrantStore) Insert(ctx context.Context, text string, vector []float32, meta Metadata) (int64, error) {
	if err := s.checkDimension(len(vector)); err != nil {
		return 0, fmt.Errorf("qdrant: insert: %w", err)
	}

	id := s.nextID()
	payload := map[string]any{
		payloadText:      text,
		payloadSource:    meta.Source,
		payloadType:      string(meta.Type),
		payloadCreatedAt: time.Now().Unix(),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return int64(id), nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if err := s.checkDimension(len(query)); err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}
	if k <= 0 {
		return nil, nil
	}

	// One extra point lets topK apply the ascending-id tie-break at the cut.
	// Ties spanning more than one record past k still depend on Qdrant's order.
	limit := uint64(k) + 1
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	return topK(pointResults(points), k), nil
}

// pointResults converts scored Qdrant points into SearchResults.
func pointResults(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		r := SearchResult{
			ID:         int64(p.GetId().GetNum()),
			Similarity: clampSimilarity(float64(p.GetScore())),
		}
		if payload := p.GetPayload(); payload != nil {
			r.Text = payload[payloadText].GetStringValue()
			r.Metadata = Metadata{
				Source: payload[payloadSource].GetStringValue(),
				Type:   ChunkType(payload[payloadType].GetStringValue()),
			}
		}
		results = append(results, r)
	}

	return results
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("qdrant: delete collection %q: %w", s.cfg.Collection, err)
	}
	return s.ensureCollection(ctx)
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
