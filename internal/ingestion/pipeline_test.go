package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/tools"
)

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (tools.Page, error) {
	f.calls = append(f.calls, url)
	content, ok := f.pages[url]
	if !ok {
		return tools.Page{}, errors.New("404")
	}
	return tools.Page{URL: url, Content: content}, nil
}

type fakeIndexer struct {
	got   []rag.Sources
	count int
	err   error
}

func (f *fakeIndexer) IndexContent(_ context.Context, src rag.Sources) (int, error) {
	f.got = append(f.got, src)
	return f.count, f.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewPipeline_RequiresIndexer(t *testing.T) {
	t.Parallel()
	if _, err := NewPipeline(nil, nil); err == nil {
		t.Error("NewPipeline(nil indexer) should fail")
	}
}

func TestIngest_GathersAllKinds(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	readme := writeFile(t, dir, "README.md", "# httpx\n\nA next generation HTTP client.\n")
	examples := writeFile(t, dir, "examples.md", "Basic:\n```python\nimport httpx\n```\n\nAsync:\n```python\nasync with httpx.AsyncClient() as c:\n    pass\n```\n")

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.python-httpx.org/quickstart/": "Quickstart text",
		"https://www.python-httpx.org/empty/":      "   ",
	}}
	indexer := &fakeIndexer{count: 7}
	p, err := NewPipeline(fetcher, indexer)
	if err != nil {
		t.Fatal(err)
	}

	var progress []string
	report, err := p.Ingest(context.Background(), []Source{
		{Kind: KindDocumentation, Location: "https://www.python-httpx.org/quickstart/"},
		{Kind: KindDocumentation, Location: "https://www.python-httpx.org/empty/"},
		{Kind: KindReadme, Location: readme},
		{Kind: KindExamples, Location: examples},
	}, func(msg string) { progress = append(progress, msg) })
	if err != nil {
		t.Fatalf("Ingest() = %v", err)
	}

	want := Report{Pages: 1, Readme: true, Examples: 2, Indexed: 7}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	if len(indexer.got) != 1 {
		t.Fatalf("IndexContent called %d times, want 1", len(indexer.got))
	}
	src := indexer.got[0]
	if src.Documentation[0].URL != "https://www.python-httpx.org/quickstart/" {
		t.Errorf("documentation = %+v", src.Documentation)
	}
	if !strings.HasPrefix(src.Readme, "# httpx") {
		t.Errorf("readme = %q", src.Readme)
	}
	if src.Examples[0] != "import httpx" {
		t.Errorf("examples = %q", src.Examples)
	}
	if last := progress[len(progress)-1]; last != "indexed 7 chunks" {
		t.Errorf("last progress = %q", last)
	}
}

func TestIngest_FetchErrorIndexesNothing(t *testing.T) {
	t.Parallel()
	indexer := &fakeIndexer{}
	p, _ := NewPipeline(&fakeFetcher{}, indexer)

	_, err := p.Ingest(context.Background(), []Source{{Kind: KindDocumentation, Location: "https://missing.example/"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing.example") {
		t.Errorf("Ingest() = %v, want fetch error", err)
	}
	if len(indexer.got) != 0 {
		t.Error("IndexContent should not run after a fetch error")
	}
}

func TestIngest_Errors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		fetcher Fetcher
		src     Source
		wantErr string
	}{
		{"no fetcher", nil, Source{Kind: KindDocumentation, Location: "https://x"}, "no fetcher"},
		{"missing file", nil, Source{Kind: KindReadme, Location: filepath.Join(t.TempDir(), "nope.md")}, "read"},
		{"unknown kind", nil, Source{Kind: "video", Location: "x"}, "unknown source kind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, _ := NewPipeline(tc.fetcher, &fakeIndexer{})
			_, err := p.Ingest(context.Background(), []Source{tc.src}, nil)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Ingest() = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestIngest_IndexError(t *testing.T) {
	t.Parallel()
	boom := errors.New("store down")
	p, _ := NewPipeline(nil, &fakeIndexer{err: boom})
	dir := t.TempDir()
	_, err := p.Ingest(context.Background(), []Source{{Kind: KindReadme, Location: writeFile(t, dir, "r.md", "readme")}}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("Ingest() = %v, want wrapped %v", err, boom)
	}
}

func TestSplitExamples(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"fenced", "```go\nfmt.Println(1)\n```\ntext\n```\nx := 2\n```", []string{"fmt.Println(1)", "x := 2"}},
		{"plain", "  print('hi')\n", []string{"print('hi')"}},
		{"blank", " \n ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SplitExamples(tc.in)
			if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
				t.Errorf("SplitExamples() = %q, want %q", got, tc.want)
			}
		})
	}
}
