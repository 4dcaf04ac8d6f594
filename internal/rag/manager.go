package rag

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/54b3r/libgen-go/internal/budget"
	"github.com/54b3r/libgen-go/internal/chunker"
	"github.com/54b3r/libgen-go/internal/logging"
)

const (
	// DefaultTopK is the number of context chunks retrieved when the caller
	// does not specify one.
	DefaultTopK = 5

	// exampleBoost multiplies the similarity of code examples when the query
	// asks for examples or usage.
	exampleBoost = 1.3
)

// exampleIntentKeywords mark a query as asking for usage examples.
var exampleIntentKeywords = []string{"example", "how to", "usage"}

// Page is one crawled documentation page.
type Page struct {
	// URL is the page address, recorded as the chunk source.
	URL string
	// Content is the extracted page text.
	Content string
}

// Sources is the material gathered for one library. Any field may be empty.
type Sources struct {
	// Documentation holds crawled documentation pages.
	Documentation []Page
	// Readme is the repository README text.
	Readme string
	// Examples holds extracted code snippets. Each is indexed as one chunk.
	Examples []string
}

// ContextChunk is a retrieved chunk selected for the generation prompt.
type ContextChunk struct {
	// Text is the chunk content.
	Text string
	// Source is the chunk provenance.
	Source string
	// Type is the chunk category.
	Type ChunkType
	// Score is the re-ranked relevance score.
	Score float64
}

// ManagerConfig holds the dependencies and limits for a ContextManager.
type ManagerConfig struct {
	// Embedder converts chunk and query text into vectors. Required.
	Embedder Embedder
	// Store persists and searches embeddings. Required.
	Store VectorStore
	// Chunker splits documentation and README text. Defaults to
	// chunker.New(chunker.DefaultSize, chunker.DefaultOverlap).
	Chunker *chunker.Chunker
	// TopK is the default number of chunks to retrieve (default: 5).
	TopK int
	// MaxContextTokens caps the estimated tokens of retrieved context
	// (default: budget.DefaultMaxContextTokens).
	MaxContextTokens int
}

// ContextManager indexes acquired material into a VectorStore and assembles
// re-ranked, token-budgeted context for a query. It is safe for concurrent use
// when the underlying Embedder and VectorStore are.
type ContextManager struct {
	// embedder converts text to vectors.
	embedder Embedder
	// store holds the indexed chunks.
	store VectorStore
	// chunker splits prose into chunks.
	chunker *chunker.Chunker
	// topK is the default retrieval count.
	topK int
	// maxTokens is the context budget in estimated tokens.
	maxTokens int
}

// NewContextManager validates cfg and applies defaults.
func NewContextManager(cfg ManagerConfig) (*ContextManager, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.Chunker == nil {
		cfg.Chunker = chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return &ContextManager{
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		chunker:   cfg.Chunker,
		topK:      cfg.TopK,
		maxTokens: cfg.MaxContextTokens,
	}, nil
}

// MaxContextTokens returns the configured context budget.
func (m *ContextManager) MaxContextTokens() int { return m.maxTokens }

// BuildChunks converts src into tagged chunks. Documentation pages and the
// README are split by the chunker; each non-blank example becomes a single
// chunk whose source records its position in src.Examples.
func (m *ContextManager) BuildChunks(src Sources) []Chunk {
	var chunks []Chunk

	for _, page := range src.Documentation {
		for _, text := range m.chunker.ChunkText(page.Content) {
			chunks = append(chunks, Chunk{Text: text, Source: page.URL, Type: TypeDocumentation})
		}
	}

	for _, text := range m.chunker.ChunkText(src.Readme) {
		chunks = append(chunks, Chunk{Text: text, Source: SourceReadme, Type: TypeReadme})
	}

	for i, ex := range src.Examples {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}
		chunks = append(chunks, Chunk{Text: ex, Source: fmt.Sprintf("example_%d", i), Type: TypeCodeExample})
	}

	return chunks
}

// IndexContent chunks src, embeds every chunk in a single batch, and inserts
// one record per chunk. It returns the number of records inserted. When src
// holds nothing to index it is a no-op.
func (m *ContextManager) IndexContent(ctx context.Context, src Sources) (int, error) {
	log := logging.FromContext(ctx)

	chunks := m.BuildChunks(src)
	if len(chunks) == 0 {
		log.Info("context: nothing to index", slog.Int("indexed", 0))
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("rag: embed %d chunks: %w", len(texts), err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("rag: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	indexed := 0
	for i, c := range chunks {
		if _, err := m.store.Insert(ctx, c.Text, vectors[i], Metadata{Source: c.Source, Type: c.Type}); err != nil {
			return indexed, fmt.Errorf("rag: insert chunk %d (%s): %w", i, c.Source, err)
		}
		indexed++
	}

	log.Info("context: indexed content",
		slog.Int("indexed", indexed),
		slog.Int("documentation_pages", len(src.Documentation)),
		slog.Bool("readme", src.Readme != ""),
		slog.Int("examples", len(src.Examples)),
	)
	return indexed, nil
}

// Retrieve returns up to k chunks relevant to query for libraryName. It
// over-fetches 2k candidates, re-ranks them, and then walks the first k in
// order, stopping at the first chunk that would push the estimated token total
// past the budget. A non-positive k selects the configured default.
func (m *ContextManager) Retrieve(ctx context.Context, query, libraryName string, k int) ([]ContextChunk, error) {
	if k <= 0 {
		k = m.topK
	}

	enhanced := strings.TrimSpace(libraryName + " " + query)
	vec, err := EmbedOne(ctx, m.embedder, enhanced)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	candidates, err := m.store.Search(ctx, vec, 2*k)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	ranked := Rerank(query, candidates)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	var (
		out  []ContextChunk
		used int
	)
	for _, r := range ranked {
		if !budget.Fits(used, r.Text, m.maxTokens) {
			break
		}
		used += budget.Estimate(r.Text)
		out = append(out, ContextChunk{
			Text:   r.Text,
			Source: r.Metadata.Source,
			Type:   r.Metadata.Type,
			Score:  r.Score,
		})
	}

	logging.FromContext(ctx).Debug("context: retrieved",
		slog.Int("candidates", len(candidates)),
		slog.Int("selected", len(out)),
		slog.Int("tokens", used),
		slog.Int("budget", m.maxTokens),
	)
	return out, nil
}

// RetrieveRelevantContext is Retrieve reduced to the chunk texts, in order.
func (m *ContextManager) RetrieveRelevantContext(ctx context.Context, query, libraryName string, k int) ([]string, error) {
	chunks, err := m.Retrieve(ctx, query, libraryName, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts, nil
}

// Ranked is a search result with its re-ranked score. Similarity stays the
// raw cosine value; Score may exceed 1 after the example boost.
type Ranked struct {
	SearchResult
	// Score is the adjusted relevance used for ordering.
	Score float64
}

// Rerank orders results by adjusted score. When the query asks for examples
// or usage, code examples score 1.3 times their similarity. Equal scores keep
// their store order. results is not modified.
func Rerank(query string, results []SearchResult) []Ranked {
	q := strings.ToLower(query)
	wantsExamples := slices.ContainsFunc(exampleIntentKeywords, func(kw string) bool {
		return strings.Contains(q, kw)
	})

	out := make([]Ranked, len(results))
	for i, r := range results {
		out[i] = Ranked{SearchResult: r, Score: r.Similarity}
		if wantsExamples && r.Metadata.Type == TypeCodeExample {
			out[i].Score *= exampleBoost
		}
	}

	slices.SortStableFunc(out, func(a, b Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Count returns the number of indexed chunks.
func (m *ContextManager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// Clear removes every indexed chunk.
func (m *ContextManager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}
