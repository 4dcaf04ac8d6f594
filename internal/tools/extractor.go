package tools

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/54b3r/libgen-go/internal/logging"
)

// minExampleLen is the length a snippet must exceed to be kept.
const minExampleLen = 50

// fencedBlock matches a markdown fenced code block with any language tag.
var fencedBlock = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*?)```")

// codeMarkers identify HTML <code> content as source rather than inline
// identifiers.
var codeMarkers = []string{"import ", "def ", "class ", "func ", "="}

// ExampleExtractor pulls code snippets out of crawled pages and READMEs. It
// has no state and is safe for concurrent use.
type ExampleExtractor struct{}

// NewExampleExtractor returns an ExampleExtractor.
func NewExampleExtractor() *ExampleExtractor { return &ExampleExtractor{} }

// Name returns the tool name.
func (e *ExampleExtractor) Name() string { return "code_example_extractor" }

// Description returns the tool description.
func (e *ExampleExtractor) Description() string {
	return "Extracts code examples from documentation pages and repository READMEs."
}

// Execute returns the unique snippets longer than 50 characters found in
// in.Pages and in.Readme, in first-seen order. It never fails.
func (e *ExampleExtractor) Execute(ctx context.Context, in ExtractInput) ([]string, error) {
	var found []string
	for _, p := range in.Pages {
		found = append(found, ExtractMarkdown(p.Content)...)
		if strings.Contains(p.Content, "<code") || strings.Contains(p.Content, "<pre") {
			found = append(found, ExtractHTML(p.Content)...)
		}
	}
	found = append(found, ExtractMarkdown(in.Readme)...)

	seen := make(map[string]bool, len(found))
	var out []string
	for _, ex := range found {
		if len(ex) <= minExampleLen || seen[ex] {
			continue
		}
		seen[ex] = true
		out = append(out, ex)
	}

	logging.FromContext(ctx).Info("extractor: extracted code examples",
		slog.Int("candidates", len(found)),
		slog.Int("examples", len(out)),
	)
	return out, nil
}

// ExtractMarkdown returns the trimmed, non-empty bodies of fenced code blocks.
func ExtractMarkdown(text string) []string {
	var out []string
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

// ExtractHTML returns the text of <pre> and <code> elements that look like
// source code. A <code> nested in a <pre> is reported once.
func ExtractHTML(src string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find("pre, code").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "code" && s.ParentsFiltered("pre").Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" && looksLikeCode(text) {
			out = append(out, text)
		}
	})
	return out
}

// looksLikeCode reports whether text contains any code marker.
func looksLikeCode(text string) bool {
	for _, m := range codeMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
