package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/libgen-go/internal/budget"
	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/tools"
)

const (
	// DefaultMaxIterations caps the number of stage executions per run.
	DefaultMaxIterations = 10

	// defaultLanguage is the language code is generated in.
	defaultLanguage = "Python"
)

// Generator is the model interface the workflow calls.
type Generator interface {
	// Generate returns the completion for msgs.
	Generate(ctx context.Context, msgs []*schema.Message) (string, error)
	// GenerateJSON returns the completion parsed as a JSON object, or an
	// empty map when it holds none.
	GenerateJSON(ctx context.Context, msgs []*schema.Message) (map[string]any, error)
}

// ContextStore indexes gathered material and retrieves budgeted context.
// *rag.ContextManager implements it.
type ContextStore interface {
	// IndexContent chunks, embeds, and stores src.
	IndexContent(ctx context.Context, src rag.Sources) (int, error)
	// Retrieve returns re-ranked, budgeted context for query.
	Retrieve(ctx context.Context, query, library string, k int) ([]rag.ContextChunk, error)
}

// Config holds the collaborators and limits of an Agent. Search, Crawl, and
// Repo are optional; a missing collaborator is reported as a warning and its
// stage continues without results.
type Config struct {
	// LLM generates the analysis and the code. Required.
	LLM Generator
	// Context indexes and retrieves context. Required.
	Context ContextStore
	// Search finds documentation pages.
	Search tools.Tool[tools.SearchInput, []tools.SearchResult]
	// Crawl fetches documentation from the top search result.
	Crawl tools.Tool[tools.CrawlInput, tools.CrawlOutput]
	// Repo analyses the library's source repository.
	Repo tools.Tool[tools.RepoInput, tools.RepoInfo]
	// Extractor pulls code examples from pages and READMEs (default:
	// tools.NewExampleExtractor()).
	Extractor tools.Tool[tools.ExtractInput, []string]
	// MaxIterations caps stage executions per run (default: 10).
	MaxIterations int
	// TopK is the number of context chunks to retrieve (default: the
	// context store's own default).
	TopK int
	// Language is the language code is generated in (default: Python).
	Language string
	// Metrics records stage and run metrics. Optional.
	Metrics *Metrics
}

// Agent runs the code generation workflow. It is safe for concurrent use;
// each call to Generate owns its own State.
type Agent struct {
	// cfg holds the resolved configuration.
	cfg Config
	// graph is the validated stage graph.
	graph *Graph
}

// Result is the outcome of a completed run.
type Result struct {
	// Code is the generated completion.
	Code string `json:"code"`
	// Confidence is the validation score, 0.8 or 0.3.
	Confidence float64 `json:"confidence"`
	// ContextUsed holds the context texts given to the model, in order.
	ContextUsed []string `json:"context_used"`
	// Sources holds the provenance of each ContextUsed entry.
	Sources []string `json:"sources"`
	// ErrorMessage explains a low confidence score.
	ErrorMessage string `json:"error_message,omitempty"`
	// Warnings lists the steps that degraded.
	Warnings []string `json:"warnings,omitempty"`
	// Iterations is the number of stages executed.
	Iterations int `json:"iterations"`
}

// RunOption customises a single Generate call.
type RunOption func(*runOptions)

// runOptions holds per-run settings.
type runOptions struct {
	observers []Observer
}

// WithObserver registers fn to be called after every stage of the run.
func WithObserver(fn Observer) RunOption {
	return func(o *runOptions) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// ObserverFrom folds the observers registered by opts into one Observer, or
// returns nil when there are none.
func ObserverFrom(opts ...RunOption) Observer {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if len(ro.observers) == 0 {
		return nil
	}
	return func(stage Stage, st State, elapsed time.Duration) {
		for _, fn := range ro.observers {
			fn(stage, st, elapsed)
		}
	}
}

// New validates cfg, applies defaults, and builds the stage graph.
func New(cfg *Config) (*Agent, error) {
	if cfg == nil || cfg.LLM == nil {
		return nil, errors.New("workflow: LLM must not be nil")
	}
	if cfg.Context == nil {
		return nil, errors.New("workflow: Context must not be nil")
	}

	a := &Agent{cfg: *cfg}
	if a.cfg.Extractor == nil {
		a.cfg.Extractor = tools.NewExampleExtractor()
	}
	if a.cfg.MaxIterations <= 0 {
		a.cfg.MaxIterations = DefaultMaxIterations
	}
	if strings.TrimSpace(a.cfg.Language) == "" {
		a.cfg.Language = defaultLanguage
	}

	g, err := NewGraph(StageAnalyzeQuery, a.nodes(), DefaultEdges())
	if err != nil {
		return nil, err
	}
	a.graph = g
	return a, nil
}

// DefaultEdges returns the transitions of the code generation graph. Every
// stage may also end the run early.
func DefaultEdges() map[Stage]Edge {
	return map[Stage]Edge{
		StageAnalyzeQuery: {Routes: map[Stage]Stage{
			StageSearchDocumentation: StageSearchDocumentation,
			StageEnd:                 StageEnd,
		}},
		StageSearchDocumentation: {Routes: map[Stage]Stage{
			StageCrawlDocumentation: StageCrawlDocumentation,
			StageAnalyzeGitHub:      StageAnalyzeGitHub,
			StageEnd:                StageEnd,
		}},
		StageCrawlDocumentation: {Routes: map[Stage]Stage{
			StageAnalyzeGitHub: StageAnalyzeGitHub,
			StageEnd:           StageEnd,
		}},
		StageAnalyzeGitHub: {Routes: map[Stage]Stage{
			StageExtractExamples: StageExtractExamples,
			StageEnd:             StageEnd,
		}},
		StageExtractExamples: {Routes: map[Stage]Stage{
			StageManageContext: StageManageContext,
			StageEnd:           StageEnd,
		}},
		StageManageContext: {Routes: map[Stage]Stage{
			StageGenerateCode: StageGenerateCode,
			StageEnd:          StageEnd,
		}},
		StageGenerateCode: {Routes: map[Stage]Stage{
			StageValidateCode: StageValidateCode,
			StageEnd:          StageEnd,
		}},
		StageValidateCode: {Always: StageEnd},
	}
}

// nodes maps each stage to its implementation.
func (a *Agent) nodes() map[Stage]StageFunc {
	return map[Stage]StageFunc{
		StageAnalyzeQuery:        a.analyzeQuery,
		StageSearchDocumentation: a.searchDocumentation,
		StageCrawlDocumentation:  a.crawlDocumentation,
		StageAnalyzeGitHub:       a.analyzeGitHub,
		StageExtractExamples:     a.extractExamples,
		StageManageContext:       a.manageContext,
		StageGenerateCode:        a.generateCode,
		StageValidateCode:        a.validateCode,
	}
}

// Generate runs the workflow for library and task. A run that completes,
// including degraded runs, returns a Result. Only a failed generation call,
// a routing defect, or cancellation returns an error.
func (a *Agent) Generate(ctx context.Context, library, task string, opts ...RunOption) (*Result, error) {
	extra := ObserverFrom(opts...)

	if strings.TrimSpace(library) == "" || strings.TrimSpace(task) == "" {
		return nil, errors.New("workflow: library and task are required")
	}

	log := logging.FromContext(ctx).With(slog.String("library", library))
	ctx = logging.WithLogger(ctx, log)
	log.Info("workflow: starting code generation", slog.String("task", task))

	observe := func(stage Stage, st State, elapsed time.Duration) {
		a.cfg.Metrics.observeStage(stage, elapsed.Seconds())
		log.Info("workflow: stage complete",
			slog.String("stage", stage.String()),
			slog.Duration("elapsed", elapsed),
			slog.String("next", st.NextAction.String()),
		)
		if extra != nil {
			extra(stage, st, elapsed)
		}
	}

	started := time.Now()
	final, err := a.graph.Run(ctx, NewState(library, task), a.cfg.MaxIterations, observe)
	if err != nil {
		a.cfg.Metrics.observeRun(outcomeError)
		log.Error("workflow: run failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(started)))
		return nil, err
	}

	outcome := outcomeOK
	if len(final.Warnings) > 0 {
		outcome = outcomeDegraded
	}
	a.cfg.Metrics.observeRun(outcome)

	res := newResult(final)
	log.Info("workflow: run complete",
		slog.Float64("confidence", res.Confidence),
		slog.Int("iterations", res.Iterations),
		slog.Int("context_chunks", len(res.ContextUsed)),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

// newResult converts a final state into a Result.
func newResult(st State) *Result {
	sources := make([]string, len(st.RelevantContext))
	for i, c := range st.RelevantContext {
		sources[i] = c.Source
	}
	return &Result{
		Code:         st.GeneratedCode,
		Confidence:   st.ConfidenceScore,
		ContextUsed:  st.ContextTexts(),
		Sources:      sources,
		ErrorMessage: st.ErrorMessage,
		Warnings:     st.Warnings,
		Iterations:   st.IterationCount,
	}
}

// contextTokens returns the estimated tokens of the retrieved context.
func contextTokens(chunks []rag.ContextChunk) int {
	total := 0
	for _, c := range chunks {
		total += budget.Estimate(c.Text)
	}
	return total
}

// wrapGeneration marks err as a generation failure.
func wrapGeneration(err error) error {
	return fmt.Errorf("%w: %w", ErrGeneration, err)
}
