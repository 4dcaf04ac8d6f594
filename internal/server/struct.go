package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/workflow"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// GenerateTimeout bounds one /api/generate run (default: 5m).
	GenerateTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency checks run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes
	// (LIBGEN_API_KEY). If empty, authentication is disabled.
	APIKey string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Generator runs the code generation workflow. *workflow.Agent satisfies it.
type Generator interface {
	Generate(ctx context.Context, library, task string, opts ...workflow.RunOption) (*workflow.Result, error)
}

// ContextSearcher queries the context store. *rag.ContextManager satisfies it.
type ContextSearcher interface {
	Retrieve(ctx context.Context, query, libraryName string, k int) ([]rag.ContextChunk, error)
	Count(ctx context.Context) (int, error)
}

// Server is the HTTP server that exposes the generation workflow.
type Server struct {
	// generator runs generation requests.
	generator Generator
	// contexts answers context searches. May be nil.
	contexts ContextSearcher
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency checks for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// generateRequest is the JSON body for POST /api/generate.
type generateRequest struct {
	// Library is the target library name.
	Library string `json:"library"`
	// Task is the natural language description of the code to write.
	Task string `json:"task"`
}

// stageEvent is the payload of an SSE "stage" event.
type stageEvent struct {
	// Stage is the stage that just completed.
	Stage string `json:"stage"`
	// Iteration is the run's iteration count after the stage.
	Iteration int `json:"iteration"`
	// DurationMS is the stage's wall-clock time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// Warnings is the number of warnings recorded so far.
	Warnings int `json:"warnings"`
}

// searchRequest is the JSON body for POST /api/context/search.
type searchRequest struct {
	// Query is the retrieval query.
	Query string `json:"query"`
	// Library scopes the query to a library name. Optional.
	Library string `json:"library"`
	// TopK overrides the number of chunks returned. Optional.
	TopK int `json:"top_k"`
}

// searchHit is one chunk in a searchResponse.
type searchHit struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Type   string  `json:"type"`
	Score  float64 `json:"score"`
}

// searchResponse is the JSON response for POST /api/context/search.
type searchResponse struct {
	Chunks []searchHit `json:"chunks"`
}

// statsResponse is the JSON response for GET /api/context/stats.
type statsResponse struct {
	// Chunks is the number of indexed chunks.
	Chunks int `json:"chunks"`
}
