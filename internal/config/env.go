package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/54b3r/libgen-go/internal/budget"
	"github.com/54b3r/libgen-go/internal/chunker"
	"github.com/54b3r/libgen-go/internal/rag"
)

// Workflow defaults, matching the documented environment variables.
const (
	DefaultMaxIterations = 10
	DefaultLanguage      = "Python"
)

// Workflow holds the resolved workflow settings.
type Workflow struct {
	// MaxIterations caps stage executions per run (MAX_ITERATIONS).
	MaxIterations int
	// MaxContextTokens is the retrieved context budget (MAX_CONTEXT_TOKENS).
	MaxContextTokens int
	// ChunkSize is the maximum chunk length (CHUNK_SIZE).
	ChunkSize int
	// ChunkOverlap is the chunk overlap (CHUNK_OVERLAP).
	ChunkOverlap int
	// TopK is the number of chunks retrieved (TOP_K_RESULTS).
	TopK int
	// Language is the generation language (TARGET_LANGUAGE).
	Language string
}

// Tools holds collaborator credentials.
type Tools struct {
	// TavilyAPIKey enables documentation search and crawl (TAVILY_API_KEY).
	TavilyAPIKey string
	// GitHubToken authenticates GitHub API calls (GITHUB_TOKEN).
	GitHubToken string
}

// LoadDotEnv loads variables from path, or from ./.env when path is empty,
// without overriding variables already set. A missing default file is not an
// error. It returns the file loaded, or "".
func LoadDotEnv(path string, log *slog.Logger) (string, error) {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return path, nil
}

// WorkflowFromEnv resolves Workflow from environment variables:
//
//	MAX_ITERATIONS     (default: 10)
//	MAX_CONTEXT_TOKENS (default: 8000)
//	CHUNK_SIZE         (default: 1000)
//	CHUNK_OVERLAP      (default: 200)
//	TOP_K_RESULTS      (default: 5)
//	TARGET_LANGUAGE    (default: Python)
func WorkflowFromEnv() Workflow {
	return Workflow{
		MaxIterations:    envInt("MAX_ITERATIONS", DefaultMaxIterations),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
		ChunkSize:        envInt("CHUNK_SIZE", chunker.DefaultSize),
		ChunkOverlap:     envInt("CHUNK_OVERLAP", chunker.DefaultOverlap),
		TopK:             envInt("TOP_K_RESULTS", rag.DefaultTopK),
		Language:         envOr("TARGET_LANGUAGE", DefaultLanguage),
	}
}

// StoreFromEnv resolves the vector store selection for embeddings of the
// given dimension:
//
//	VECTOR_BACKEND = sqlite | qdrant | pgvector (default: sqlite)
//	DATABASE_PATH  (default: ./data/vector_store.db)
//	QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION, QDRANT_API_KEY, QDRANT_TLS
//	PGVECTOR_DSN, PGVECTOR_TABLE
func StoreFromEnv(dimension int) rag.StoreConfig {
	return rag.StoreConfig{
		Backend:    rag.Backend(strings.ToLower(envOr("VECTOR_BACKEND", string(rag.BackendSQLite)))),
		Dimension:  dimension,
		SQLitePath: envOr("DATABASE_PATH", rag.DefaultSQLitePath),
		Qdrant: rag.QdrantConfig{
			Host:       envOr("QDRANT_HOST", "localhost"),
			Port:       envInt("QDRANT_PORT", 6334),
			Collection: os.Getenv("QDRANT_COLLECTION"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		},
		PgvectorDSN:   os.Getenv("PGVECTOR_DSN"),
		PgvectorTable: os.Getenv("PGVECTOR_TABLE"),
	}
}

// ToolsFromEnv resolves collaborator credentials.
func ToolsFromEnv() Tools {
	return Tools{
		TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
	}
}

// envOr returns the value of key, or fallback when unset or empty.
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envInt returns the positive integer value of key, or fallback when unset,
// unparseable, or negative. CHUNK_OVERLAP=0 is honoured.
func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return fallback
	}
	return i
}
