package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/libgen-go/internal/chunker"
	"github.com/54b3r/libgen-go/internal/config"
	"github.com/54b3r/libgen-go/internal/embedder"
	"github.com/54b3r/libgen-go/internal/llm"
	"github.com/54b3r/libgen-go/internal/provider"
	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/server"
	"github.com/54b3r/libgen-go/internal/tools"
	"github.com/54b3r/libgen-go/internal/workflow"
)

// contextRuntime is an open context store and the manager over it.
type contextRuntime struct {
	// store is the opened vector store. Close it when done.
	store rag.VectorStore
	// manager indexes and retrieves through store.
	manager *rag.ContextManager
	// backend names the store in logs and readiness checks.
	backend rag.Backend
}

// Close releases the store.
func (c *contextRuntime) Close() error { return c.store.Close() }

// openContext validates the embedding configuration, then opens the vector
// store selected by VECTOR_BACKEND and wraps it in a ContextManager.
func openContext(ctx context.Context, log *slog.Logger, wf config.Workflow) (*contextRuntime, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	embBackend := embedder.ResolveBackend()
	log.Info("embedder initialised", slog.String("provider", embBackend))

	storeCfg := config.StoreFromEnv(embedder.DefaultDimensions(embBackend))
	store, err := rag.OpenStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s vector store: %w", storeCfg.Backend, err)
	}
	log.Info("vector store ready", slog.String("backend", string(storeCfg.Backend)))

	mgr, err := rag.NewContextManager(rag.ManagerConfig{
		Embedder:         emb,
		Store:            store,
		Chunker:          chunker.New(wf.ChunkSize, wf.ChunkOverlap),
		TopK:             wf.TopK,
		MaxContextTokens: wf.MaxContextTokens,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &contextRuntime{store: store, manager: mgr, backend: storeCfg.Backend}, nil
}

// runtime is everything a generation needs.
type runtime struct {
	*contextRuntime
	// agent runs the workflow.
	agent *workflow.Agent
	// chatModel is the raw backend, checked by readiness checks.
	chatModel model.BaseChatModel
	// providerCfg is the resolved chat provider configuration.
	providerCfg *provider.Config
	// language is the target programming language.
	language string
}

// buildOptions customises buildRuntime.
type buildOptions struct {
	// registry receives workflow metrics. Nil disables them.
	registry prometheus.Registerer
	// onPage is called for each page the fallback crawler fetches.
	onPage func(string)
}

// buildRuntime wires the chat model, context store, collaborators, and
// workflow agent from the environment.
func buildRuntime(ctx context.Context, log *slog.Logger, opts buildOptions) (*runtime, error) {
	wf := config.WorkflowFromEnv()

	chatModel, providerCfg, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	client, err := llm.New(&llm.Config{ChatModel: chatModel, MaxPromptTokens: wf.MaxContextTokens * 2})
	if err != nil {
		return nil, err
	}

	cr, err := openContext(ctx, log, wf)
	if err != nil {
		return nil, err
	}

	cfg := &workflow.Config{
		LLM:           client,
		Context:       cr.manager,
		Extractor:     tools.NewExampleExtractor(),
		MaxIterations: wf.MaxIterations,
		TopK:          wf.TopK,
		Language:      wf.Language,
	}
	if opts.registry != nil {
		cfg.Metrics = workflow.NewMetrics(opts.registry)
	}
	wireCollaborators(cfg, config.ToolsFromEnv(), opts.onPage, log)

	agent, err := workflow.New(cfg)
	if err != nil {
		_ = cr.Close()
		return nil, fmt.Errorf("failed to initialise workflow: %w", err)
	}
	return &runtime{contextRuntime: cr, agent: agent, chatModel: chatModel, providerCfg: providerCfg, language: wf.Language}, nil
}

// wireCollaborators attaches search, crawl, and repository tools to cfg.
// Without TAVILY_API_KEY there is no search, and crawling falls back to the
// built-in web crawler.
func wireCollaborators(cfg *workflow.Config, creds config.Tools, onPage func(string), log *slog.Logger) {
	if creds.TavilyAPIKey != "" {
		client, err := tools.NewTavilyClient(tools.TavilyConfig{APIKey: creds.TavilyAPIKey})
		if err != nil {
			log.Warn("tavily disabled", slog.Any("error", err))
		} else {
			cfg.Search = tools.NewTavilySearch(client)
			cfg.Crawl = tools.NewTavilyCrawl(client)
		}
	} else {
		log.Warn("documentation search disabled", slog.String("reason", "TAVILY_API_KEY not set"))
	}
	if cfg.Crawl == nil {
		cfg.Crawl = tools.NewWebCrawler(tools.CrawlerConfig{OnPage: onPage})
	}

	if creds.GitHubToken == "" {
		log.Info("github: unauthenticated, rate limits are low", slog.String("hint", "set GITHUB_TOKEN"))
	}
	cfg.Repo = tools.NewGitHubClient(tools.GitHubConfig{Token: creds.GitHubToken, Language: cfg.Language})
}

// buildPingers constructs readiness checks for the chat model and the
// context store.
func buildPingers(rt *runtime) []server.Pinger {
	pingers := []server.Pinger{
		server.NewLLMPinger(rt.chatModel, provider.NewHealthCheck(rt.providerCfg), string(rt.providerCfg.Backend)),
	}
	switch s := rt.store.(type) {
	case *rag.QdrantStore:
		pingers = append(pingers, server.NewQdrantPinger(s.Client()))
	case *rag.SQLiteStore:
		pingers = append(pingers, server.NewStorePinger(s, string(rt.backend)))
	case *rag.PgvectorStore:
		pingers = append(pingers, server.NewStorePinger(s, string(rt.backend)))
	}
	return pingers
}

// stderrf prints a formatted line to stderr.
func stderrf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
