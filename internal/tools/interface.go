// Package tools implements the external collaborators the generation workflow
// calls to acquire source material: documentation search and crawl, GitHub
// repository inspection, and code example extraction.
//
// Every collaborator satisfies the single capability interface [Tool], so the
// workflow depends on behaviour rather than on concrete clients and tests can
// substitute fakes.
package tools

import (
	"context"
	"errors"
	"fmt"
)

// ErrCollaborator marks a failed or timed-out call to an external service.
// The workflow treats it as recoverable and continues with partial results.
var ErrCollaborator = errors.New("tools: collaborator call failed")

// Tool is the capability interface implemented by every collaborator adapter.
type Tool[In, Out any] interface {
	// Name returns the unique tool name used in logs and metrics.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Execute performs the call. Failures of the remote service are wrapped
	// with ErrCollaborator.
	Execute(ctx context.Context, in In) (Out, error)
}

// Page is one fetched documentation page.
type Page struct {
	// URL is the page address.
	URL string `json:"url"`
	// Content is the page text.
	Content string `json:"content"`
}

// SearchInput is the input to a documentation search tool.
type SearchInput struct {
	// Library is the library being researched.
	Library string
	// Task is the user's task, appended to the query when set.
	Task string
}

// SearchResult is one documentation search hit.
type SearchResult struct {
	// Title is the page title.
	Title string `json:"title"`
	// URL is the page address.
	URL string `json:"url"`
	// Content is the snippet returned by the search service.
	Content string `json:"content"`
	// Score is the service's relevance score.
	Score float64 `json:"score"`
}

// CrawlInput is the input to a crawl tool.
type CrawlInput struct {
	// URL is the starting page.
	URL string
	// Instructions guide extraction on services that accept them.
	Instructions string
}

// CrawlOutput holds the pages returned by a crawl.
type CrawlOutput struct {
	// Results is the list of crawled pages. It may be partial.
	Results []Page
}

// RepoInput is the input to a repository analysis tool.
type RepoInput struct {
	// Library is the name to search for.
	Library string
}

// RepoStructure summarises a repository's top-level layout.
type RepoStructure struct {
	// Files lists the root entry names.
	Files []string `json:"files"`
	// HasExamples reports a root entry containing "example".
	HasExamples bool `json:"has_examples"`
	// HasDocs reports a root entry containing "doc".
	HasDocs bool `json:"has_docs"`
}

// RepoInfo is the result of analysing a library's repository.
type RepoInfo struct {
	// Found reports whether a repository was located.
	Found bool `json:"found"`
	// URL is the repository HTML address.
	URL string `json:"repository_url,omitempty"`
	// FullName is the owner/name pair.
	FullName string `json:"full_name,omitempty"`
	// Description is the repository description.
	Description string `json:"description,omitempty"`
	// Stars is the stargazer count.
	Stars int `json:"stars,omitempty"`
	// Readme is the raw README text, empty when unavailable.
	Readme string `json:"readme,omitempty"`
	// Structure is the root layout, nil when unavailable.
	Structure *RepoStructure `json:"structure,omitempty"`
}

// ExtractInput is the material the example extractor scans.
type ExtractInput struct {
	// Pages holds crawled documentation, which may be markdown or HTML.
	Pages []Page
	// Readme is the repository README markdown.
	Readme string
}

// collaboratorError wraps err with the tool name and ErrCollaborator.
func collaboratorError(tool, action string, err error) error {
	return fmt.Errorf("%s: %s: %w: %w", tool, action, ErrCollaborator, err)
}
