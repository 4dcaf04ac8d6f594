package tools

import (
	"context"
	"strings"
	"testing"
)

const longSnippet = "import requests\nresp = requests.get('https://api.github.com/events')\nprint(resp.json())"

func TestExtractMarkdown(t *testing.T) {
	t.Parallel()
	md := "Intro\n```python\n" + longSnippet + "\n```\ntext\n```\n\n```\n```go\nfunc main() {}\n```"
	got := ExtractMarkdown(md)
	if len(got) != 2 {
		t.Fatalf("ExtractMarkdown() = %q", got)
	}
	if got[0] != longSnippet || got[1] != "func main() {}" {
		t.Errorf("ExtractMarkdown() = %q", got)
	}
}

func TestExtractHTML(t *testing.T) {
	t.Parallel()
	src := `<p>Call <code>get</code>.</p><pre><code>x = requests.get(url)</code></pre><code>import os</code>`
	got := ExtractHTML(src)
	want := []string{"x = requests.get(url)", "import os"}
	if len(got) != len(want) {
		t.Fatalf("ExtractHTML() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExtractHTML()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExampleExtractor_Execute(t *testing.T) {
	t.Parallel()
	html := "<pre>" + strings.ReplaceAll(longSnippet, "'", "&#39;") + "\nprint('from html page')</pre>"
	in := ExtractInput{
		Pages: []Page{
			{URL: "https://docs/1", Content: "```python\n" + longSnippet + "\n```\n```\nx = 1\n```"},
			{URL: "https://docs/2", Content: html},
		},
		Readme: "# Readme\n```python\n" + longSnippet + "\n```",
	}

	got, err := NewExampleExtractor().Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Execute() = %q, want 2 unique long snippets", got)
	}
	if got[0] != longSnippet {
		t.Errorf("first-seen order lost: %q", got[0])
	}
	if !strings.HasSuffix(got[1], "print('from html page')") {
		t.Errorf("html snippet = %q", got[1])
	}
}
