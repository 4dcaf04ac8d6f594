package workflow

import (
	"maps"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/tools"
)

// State is the record threaded through the stages of one run. Stages receive
// it by value and return a new value; slices, maps, and pointed-to structs are
// copied before modification so no stage shares mutable data with an earlier
// state.
type State struct {
	// LibraryName is the library the code should use.
	LibraryName string
	// Task describes what the generated code should do.
	Task string

	// Messages is the conversation exchanged with the model so far.
	Messages []*schema.Message
	// Analysis is the parsed query analysis, empty when the model returned
	// no JSON.
	Analysis map[string]any

	// SearchResults holds documentation search hits.
	SearchResults []tools.SearchResult
	// CrawledDocumentation is nil until a crawl succeeds.
	CrawledDocumentation *tools.CrawlOutput
	// GitHubInfo is nil until repository analysis runs.
	GitHubInfo *tools.RepoInfo
	// CodeExamples holds extracted snippets.
	CodeExamples []string

	// RelevantContext is the retrieved, budgeted context in prompt order.
	RelevantContext []rag.ContextChunk

	// GeneratedCode is the model's completion.
	GeneratedCode string
	// ConfidenceScore is set by validation.
	ConfidenceScore float64
	// IterationCount is the number of stages executed so far.
	IterationCount int
	// ErrorMessage annotates a low-confidence result.
	ErrorMessage string
	// Warnings records degraded steps, one entry per recovered failure.
	Warnings []string

	// NextAction is the stage this state asks to run next.
	NextAction Stage
}

// NewState returns the initial state for a run.
func NewState(library, task string) State {
	return State{
		LibraryName: strings.TrimSpace(library),
		Task:        strings.TrimSpace(task),
		NextAction:  StageAnalyzeQuery,
	}
}

// Clone returns a copy of s that shares no mutable data with it. Messages are
// treated as immutable once appended and are not copied individually.
func (s State) Clone() State {
	c := s
	c.Messages = slices.Clone(s.Messages)
	c.Analysis = maps.Clone(s.Analysis)
	c.SearchResults = slices.Clone(s.SearchResults)
	c.CodeExamples = slices.Clone(s.CodeExamples)
	c.RelevantContext = slices.Clone(s.RelevantContext)
	c.Warnings = slices.Clone(s.Warnings)
	if s.CrawledDocumentation != nil {
		crawl := tools.CrawlOutput{Results: slices.Clone(s.CrawledDocumentation.Results)}
		c.CrawledDocumentation = &crawl
	}
	if s.GitHubInfo != nil {
		info := *s.GitHubInfo
		if info.Structure != nil {
			st := *info.Structure
			st.Files = slices.Clone(st.Files)
			info.Structure = &st
		}
		c.GitHubInfo = &info
	}
	return c
}

// ContextTexts returns the text of each retrieved context chunk.
func (s State) ContextTexts() []string {
	out := make([]string, len(s.RelevantContext))
	for i, c := range s.RelevantContext {
		out[i] = c.Text
	}
	return out
}

// ShouldContinue returns the action to route on after s. It returns StageEnd
// once IterationCount reaches maxIterations, whatever the stage requested.
// An empty request is returned as is and fails routing.
func ShouldContinue(s State, maxIterations int) Stage {
	if s.IterationCount >= maxIterations {
		return StageEnd
	}
	return s.NextAction
}

// warn returns a copy of s with msg appended to Warnings.
func (s State) warn(msg string) State {
	s.Warnings = append(slices.Clone(s.Warnings), msg)
	return s
}
