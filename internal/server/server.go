// Package server exposes the code generation workflow over HTTP. Generation
// progress is streamed with Server-Sent Events; context search, health, and
// Prometheus metrics are plain JSON or text endpoints.
// The server is started by the `libgen serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/workflow"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// New constructs a Server for gen. contexts may be nil, in which case the
// context endpoints return 503.
func New(gen Generator, contexts ContextSearcher, cfg *Config) (*Server, error) {
	if gen == nil {
		return nil, errors.New("server: generator must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast a full generation stream.
		cfg.WriteTimeout = 6 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.GenerateTimeout == 0 {
		cfg.GenerateTimeout = 5 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		generator: gen,
		contexts:  contexts,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(limiterConfig{
		RPS:      cfg.RateLimit,
		Burst:    cfg.RateBurst,
		OnReject: s.metrics.rateLimited,
	}, s.log)
	s.stopRL = stop

	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/generate", protect(s.handleGenerate))
	mux.Handle("POST /api/context/search", protect(s.handleContextSearch))
	mux.Handle("GET /api/context/stats", authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleContextStats)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	if cfg.APIKey == "" {
		s.log.Warn("server: authentication disabled", slog.String("reason", "LIBGEN_API_KEY not set"))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.metrics.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleGenerate handles POST /api/generate. It streams one "stage" event per
// completed stage, then a "result" or "error" event, then "done".
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Library = strings.TrimSpace(req.Library)
	req.Task = strings.TrimSpace(req.Task)
	if req.Library == "" || req.Task == "" {
		writeJSONError(w, "library and task are required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sse := &sseWriter{w: w, flusher: flusher}
	log := logging.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.GenerateTimeout)
	defer cancel()

	s.metrics.generateActiveStreams.Inc()
	defer s.metrics.generateActiveStreams.Dec()
	start := time.Now()

	observe := func(stage workflow.Stage, st workflow.State, elapsed time.Duration) {
		if err := sse.event("stage", stageEvent{
			Stage:      stage.String(),
			Iteration:  st.IterationCount,
			DurationMS: elapsed.Milliseconds(),
			Warnings:   len(st.Warnings),
		}); err != nil {
			log.Debug("server: stage event dropped", slog.Any("error", err))
		}
	}

	res, err := s.generator.Generate(ctx, req.Library, req.Task, workflow.WithObserver(observe))
	outcome := generateOutcome(ctx, res, err)
	s.metrics.generateRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.generateDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("server: generation failed", slog.Any("error", err))
		_ = sse.event("error", map[string]string{"error": err.Error()})
	} else {
		_ = sse.event("result", res)
	}
	_ = sse.raw("done", "[DONE]")
}

// generateOutcome labels a finished generation for metrics.
func generateOutcome(ctx context.Context, res *workflow.Result, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case err != nil:
		return "error"
	case len(res.Warnings) > 0:
		return "degraded"
	default:
		return "ok"
	}
}

// handleContextSearch handles POST /api/context/search.
func (s *Server) handleContextSearch(w http.ResponseWriter, r *http.Request) {
	if s.contexts == nil {
		writeJSONError(w, "context store not configured", http.StatusServiceUnavailable)
		return
	}
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}

	chunks, err := s.contexts.Retrieve(r.Context(), req.Query, req.Library, req.TopK)
	if err != nil {
		logging.FromContext(r.Context()).Error("server: context search failed", slog.Any("error", err))
		writeJSONError(w, "context search failed", http.StatusBadGateway)
		return
	}

	resp := searchResponse{Chunks: make([]searchHit, 0, len(chunks))}
	for _, c := range chunks {
		resp.Chunks = append(resp.Chunks, searchHit{Text: c.Text, Source: c.Source, Type: string(c.Type), Score: c.Score})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleContextStats handles GET /api/context/stats.
func (s *Server) handleContextStats(w http.ResponseWriter, r *http.Request) {
	if s.contexts == nil {
		writeJSONError(w, "context store not configured", http.StatusServiceUnavailable)
		return
	}
	n, err := s.contexts.Count(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("server: context count failed", slog.Any("error", err))
		writeJSONError(w, "context count failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Chunks: n})
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes {"error": msg} with status.
func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sseWriter emits Server-Sent Events and flushes after each one.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter
	// flusher flushes buffered data to the client after each event.
	flusher http.Flusher
}

// event writes v as a JSON-encoded event named name.
func (s *sseWriter) event(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: encode %s event: %w", name, err)
	}
	return s.raw(name, string(b))
}

// raw writes data as an event named name. Each line of data gets its own
// "data:" prefix so multi-line payloads never break the frame boundary.
func (s *sseWriter) raw(name, data string) error {
	var buf strings.Builder
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\n")
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err := fmt.Fprint(s.w, buf.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
