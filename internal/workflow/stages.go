package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/tools"
)

const (
	// confidenceHigh is assigned when the code mentions the library.
	confidenceHigh = 0.8
	// confidenceLow is assigned when it does not.
	confidenceLow = 0.3

	// lowConfidenceMessage annotates a low-confidence result.
	lowConfidenceMessage = "generated code may not use the specified library"
)

// stageLogger returns the run logger tagged with stage.
func stageLogger(ctx context.Context, stage Stage) *slog.Logger {
	return logging.FromContext(ctx).With(slog.String("stage", stage.String()))
}

// degrade logs a recovered failure and records it on st.
func degrade(log *slog.Logger, st State, what string, err error) State {
	log.Warn("workflow: "+what+", continuing", slog.Any("error", err))
	msg := what
	if err != nil {
		msg = fmt.Sprintf("%s: %v", what, err)
	}
	return st.warn(msg)
}

// analyzeQuery asks the model what to gather. A failed or unparseable
// analysis leaves Analysis empty and the run continues.
func (a *Agent) analyzeQuery(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageAnalyzeQuery)
	st := in.Clone()
	st.NextAction = StageSearchDocumentation

	msgs := analysisMessages(st.LibraryName, st.Task)
	analysis, err := a.cfg.LLM.GenerateJSON(ctx, msgs)
	if err != nil {
		st.Analysis = map[string]any{}
		return degrade(log, st, "query analysis failed", err), nil
	}

	reply, _ := json.Marshal(analysis)
	st.Analysis = analysis
	st.Messages = append(st.Messages, msgs[1], schema.AssistantMessage(string(reply), nil))
	log.Info("workflow: query analysed", slog.Any("analysis", analysis))
	return st, nil
}

// searchDocumentation searches for documentation pages.
func (a *Agent) searchDocumentation(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageSearchDocumentation)
	st := in.Clone()
	st.NextAction = StageCrawlDocumentation

	if a.cfg.Search == nil {
		return degrade(log, st, "documentation search not configured", nil), nil
	}

	results, err := a.cfg.Search.Execute(ctx, tools.SearchInput{
		Library: st.LibraryName,
		Task:    searchTask(st.Analysis, st.Task),
	})
	if err != nil {
		st.SearchResults = nil
		return degrade(log, st, "documentation search failed", err), nil
	}

	st.SearchResults = results
	log.Info("workflow: documentation search complete", slog.Int("results", len(results)))
	return st, nil
}

// crawlDocumentation crawls the top search result. It routes straight on when
// there is nothing to crawl.
func (a *Agent) crawlDocumentation(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageCrawlDocumentation)
	st := in.Clone()
	st.NextAction = StageAnalyzeGitHub

	if len(st.SearchResults) == 0 {
		log.Info("workflow: no search results, skipping crawl")
		return st, nil
	}
	top := strings.TrimSpace(st.SearchResults[0].URL)
	if top == "" {
		log.Info("workflow: top search result has no url, skipping crawl")
		return st, nil
	}
	if a.cfg.Crawl == nil {
		return degrade(log, st, "documentation crawler not configured", nil), nil
	}

	out, err := a.cfg.Crawl.Execute(ctx, tools.CrawlInput{
		URL:          top,
		Instructions: fmt.Sprintf("Extract API documentation and usage examples for %s", st.LibraryName),
	})
	if err != nil {
		st.CrawledDocumentation = nil
		return degrade(log, st, "documentation crawl failed", err), nil
	}

	st.CrawledDocumentation = &out
	log.Info("workflow: documentation crawled", slog.String("url", top), slog.Int("pages", len(out.Results)))
	return st, nil
}

// analyzeGitHub inspects the library's repository.
func (a *Agent) analyzeGitHub(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageAnalyzeGitHub)
	st := in.Clone()
	st.NextAction = StageExtractExamples

	if a.cfg.Repo == nil {
		return degrade(log, st, "repository analysis not configured", nil), nil
	}

	info, err := a.cfg.Repo.Execute(ctx, tools.RepoInput{Library: st.LibraryName})
	if err != nil {
		st.GitHubInfo = &tools.RepoInfo{Found: false}
		return degrade(log, st, "repository analysis failed", err), nil
	}

	st.GitHubInfo = &info
	return st, nil
}

// extractExamples collects code snippets from crawled pages and the README.
func (a *Agent) extractExamples(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageExtractExamples)
	st := in.Clone()
	st.NextAction = StageManageContext

	var input tools.ExtractInput
	if st.CrawledDocumentation != nil {
		input.Pages = st.CrawledDocumentation.Results
	}
	if st.GitHubInfo != nil {
		input.Readme = st.GitHubInfo.Readme
	}

	examples, err := a.cfg.Extractor.Execute(ctx, input)
	if err != nil {
		st.CodeExamples = nil
		return degrade(log, st, "example extraction failed", err), nil
	}
	st.CodeExamples = examples
	return st, nil
}

// manageContext indexes everything gathered and retrieves context for the
// task. Index and retrieval failures degrade to whatever context is
// available.
func (a *Agent) manageContext(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageManageContext)
	st := in.Clone()
	st.NextAction = StageGenerateCode

	src := rag.Sources{Examples: st.CodeExamples}
	if st.CrawledDocumentation != nil {
		for _, p := range st.CrawledDocumentation.Results {
			src.Documentation = append(src.Documentation, rag.Page{URL: p.URL, Content: p.Content})
		}
	}
	if st.GitHubInfo != nil {
		src.Readme = st.GitHubInfo.Readme
	}

	indexed, err := a.cfg.Context.IndexContent(ctx, src)
	a.cfg.Metrics.addIndexed(indexed)
	if err != nil {
		st = degrade(log, st, "context indexing failed", err)
	}

	chunks, err := a.cfg.Context.Retrieve(ctx, st.Task, st.LibraryName, a.cfg.TopK)
	if err != nil {
		st.RelevantContext = nil
		return degrade(log, st, "context retrieval failed", err), nil
	}

	st.RelevantContext = chunks
	tokens := contextTokens(chunks)
	a.cfg.Metrics.observeContext(tokens)
	log.Info("workflow: context assembled",
		slog.Int("indexed", indexed),
		slog.Int("chunks", len(chunks)),
		slog.Int("estimated_tokens", tokens),
	)
	return st, nil
}

// generateCode asks the model for code. A failed call aborts the run.
func (a *Agent) generateCode(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageGenerateCode)
	st := in.Clone()

	msgs := generationMessages(a.cfg.Language, st.LibraryName, st.Task, st.RelevantContext)
	code, err := a.cfg.LLM.Generate(ctx, msgs)
	if err != nil {
		return in, wrapGeneration(err)
	}

	st.GeneratedCode = code
	st.Messages = append(st.Messages, msgs[1], schema.AssistantMessage(code, nil))
	st.NextAction = StageValidateCode
	log.Info("workflow: code generated", slog.Int("chars", len(code)))
	return st, nil
}

// validateCode scores the generated code. It always ends the run.
func (a *Agent) validateCode(ctx context.Context, in State) (State, error) {
	log := stageLogger(ctx, StageValidateCode)
	st := in.Clone()
	st.NextAction = StageEnd

	st.ConfidenceScore, st.ErrorMessage = Score(st.GeneratedCode, st.LibraryName)
	log.Info("workflow: code validated", slog.Float64("confidence", st.ConfidenceScore))
	return st, nil
}

// Score returns 0.8 when code mentions library case-insensitively, and
// otherwise 0.3 with an explanatory message.
func Score(code, library string) (float64, string) {
	if strings.Contains(strings.ToLower(code), strings.ToLower(library)) {
		return confidenceHigh, ""
	}
	return confidenceLow, lowConfidenceMessage
}
