// Package ingestion pre-populates the context store outside a generation
// run. Documentation pages are fetched and converted to text, README and
// example files are read from disk, and everything is indexed through the
// same ContextManager the workflow uses. The `libgen ingest` command drives
// it.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/tools"
)

// Kind selects how a Source is read and tagged.
type Kind string

const (
	// KindDocumentation is a documentation URL fetched over HTTP.
	KindDocumentation Kind = "documentation"
	// KindReadme is a README file on disk.
	KindReadme Kind = "readme"
	// KindExamples is a file of code examples on disk. Fenced blocks are
	// indexed individually; a file without fences is one example.
	KindExamples Kind = "examples"
)

// Source is one item to ingest.
type Source struct {
	// Kind selects the reader.
	Kind Kind
	// Location is a URL for KindDocumentation and a file path otherwise.
	Location string
}

// Fetcher retrieves one documentation page as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (tools.Page, error)
}

// Indexer stores gathered material. *rag.ContextManager satisfies it.
type Indexer interface {
	IndexContent(ctx context.Context, src rag.Sources) (int, error)
}

// Report summarises an Ingest call.
type Report struct {
	// Pages is the number of documentation pages fetched.
	Pages int
	// Readme reports whether any README text was read.
	Readme bool
	// Examples is the number of examples gathered.
	Examples int
	// Indexed is the number of chunks written to the store.
	Indexed int
}

// Pipeline gathers sources and indexes them in a single batch.
type Pipeline struct {
	// fetcher retrieves documentation pages.
	fetcher Fetcher
	// indexer stores the gathered material.
	indexer Indexer
	// readFile reads README and example files.
	readFile func(string) ([]byte, error)
}

// NewPipeline constructs a Pipeline. fetcher may be nil when no
// documentation URLs will be ingested.
func NewPipeline(fetcher Fetcher, indexer Indexer) (*Pipeline, error) {
	if indexer == nil {
		return nil, errors.New("ingestion: indexer must not be nil")
	}
	return &Pipeline{fetcher: fetcher, indexer: indexer, readFile: os.ReadFile}, nil
}

// Ingest reads every source, then indexes the result. It processes sources
// sequentially and returns the first error encountered; nothing is indexed
// in that case. Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) (Report, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	var (
		gathered rag.Sources
		readmes  []string
	)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		switch src.Kind {
		case KindDocumentation:
			if p.fetcher == nil {
				return Report{}, fmt.Errorf("ingestion: no fetcher configured for %s", src.Location)
			}
			progress(fmt.Sprintf("fetching %s", src.Location))
			page, err := p.fetcher.Fetch(ctx, src.Location)
			if err != nil {
				return Report{}, fmt.Errorf("ingestion: fetch failed for %s: %w", src.Location, err)
			}
			if strings.TrimSpace(page.Content) == "" {
				log.Warn("ingestion: page has no text", slog.String("url", src.Location))
				continue
			}
			gathered.Documentation = append(gathered.Documentation, rag.Page{URL: page.URL, Content: page.Content})

		case KindReadme:
			text, err := p.read(src.Location)
			if err != nil {
				return Report{}, err
			}
			progress(fmt.Sprintf("read README %s", src.Location))
			readmes = append(readmes, text)

		case KindExamples:
			text, err := p.read(src.Location)
			if err != nil {
				return Report{}, err
			}
			examples := SplitExamples(text)
			progress(fmt.Sprintf("read %d examples from %s", len(examples), src.Location))
			gathered.Examples = append(gathered.Examples, examples...)

		default:
			return Report{}, fmt.Errorf("ingestion: unknown source kind %q", src.Kind)
		}
	}
	gathered.Readme = strings.Join(readmes, "\n\n")

	indexed, err := p.indexer.IndexContent(ctx, gathered)
	if err != nil {
		return Report{}, fmt.Errorf("ingestion: index: %w", err)
	}

	r := Report{
		Pages:    len(gathered.Documentation),
		Readme:   gathered.Readme != "",
		Examples: len(gathered.Examples),
		Indexed:  indexed,
	}
	progress(fmt.Sprintf("indexed %d chunks", indexed))
	return r, nil
}

// read returns the trimmed contents of path.
func (p *Pipeline) read(path string) (string, error) {
	b, err := p.readFile(path)
	if err != nil {
		return "", fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// SplitExamples returns the fenced code blocks in text, or text itself when
// it holds no fences.
func SplitExamples(text string) []string {
	if blocks := tools.ExtractMarkdown(text); len(blocks) > 0 {
		return blocks
	}
	if text = strings.TrimSpace(text); text != "" {
		return []string{text}
	}
	return nil
}
