package mcpserver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/workflow"
)

type fakeGenerator struct {
	res *workflow.Result
	err error
	got [2]string
}

func (f *fakeGenerator) Generate(_ context.Context, library, task string, _ ...workflow.RunOption) (*workflow.Result, error) {
	f.got = [2]string{library, task}
	return f.res, f.err
}

type fakeStore struct {
	chunks []rag.ContextChunk
	count  int
	err    error
	gotK   int
}

func (f *fakeStore) Retrieve(_ context.Context, _, _ string, k int) ([]rag.ContextChunk, error) {
	f.gotK = k
	return f.chunks, f.err
}

func (f *fakeStore) Count(context.Context) (int, error) { return f.count, f.err }

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// mustNotError asserts the Handle call returns no Go error and no tool error.
func mustNotError(t *testing.T, r *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
}

// mustBeToolError asserts the Handle call returns a tool error (not a Go error).
func mustBeToolError(t *testing.T, r *mcp.CallToolResult, err error, wantSubstr string) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if !r.IsError {
		t.Fatalf("expected tool error containing %q, got success: %s", wantSubstr, resultText(r))
	}
	if !strings.Contains(resultText(r), wantSubstr) {
		t.Errorf("error text %q does not contain %q", resultText(r), wantSubstr)
	}
}

func TestGenerateTool_Definition(t *testing.T) {
	t.Parallel()
	def := NewGenerateTool(&fakeGenerator{}, t.TempDir()).Definition()
	if def.Name != "generate_code" {
		t.Errorf("name = %q", def.Name)
	}
	if strings.Join(def.InputSchema.Required, ",") != "library,task" {
		t.Errorf("required = %v", def.InputSchema.Required)
	}
}

func TestGenerateTool_Success(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{res: &workflow.Result{
		Code:       "import httpx\n",
		Confidence: 0.8,
		Iterations: 8,
		Sources:    []string{"https://www.python-httpx.org/"},
		Warnings:   []string{"crawl failed"},
	}}
	r, err := NewGenerateTool(gen, t.TempDir()).Handle(context.Background(),
		makeReq(map[string]any{"library": " httpx ", "task": "fetch a page"}))
	mustNotError(t, r, err)

	text := resultText(r)
	for _, want := range []string{"Confidence: 0.80", "Warning: crawl failed", "import httpx", "- https://www.python-httpx.org/"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
	if gen.got != [2]string{"httpx", "fetch a page"} {
		t.Errorf("generator got %v", gen.got)
	}
}

func TestGenerateTool_WritesOutputFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	gen := &fakeGenerator{res: &workflow.Result{Code: "```python\nimport httpx\n```"}}

	r, err := NewGenerateTool(gen, root).Handle(context.Background(),
		makeReq(map[string]any{"library": "httpx", "task": "t", "output_file": "out/client.py"}))
	mustNotError(t, r, err)

	b, err := os.ReadFile(filepath.Join(root, "out", "client.py"))
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	if string(b) != "import httpx\n" {
		t.Errorf("file content = %q", b)
	}
}

func TestGenerateTool_Errors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		gen  *fakeGenerator
		args map[string]any
		want string
	}{
		{"missing task", &fakeGenerator{}, map[string]any{"library": "httpx"}, "required"},
		{"generation failure", &fakeGenerator{err: errors.New("model down")}, map[string]any{"library": "a", "task": "b"}, "model down"},
		{"escaping output", &fakeGenerator{res: &workflow.Result{Code: "x"}}, map[string]any{"library": "a", "task": "b", "output_file": "../x.py"}, "write ../x.py"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewGenerateTool(tc.gen, t.TempDir()).Handle(context.Background(), makeReq(tc.args))
			mustBeToolError(t, r, err, tc.want)
		})
	}
}

func TestRetrieveTool(t *testing.T) {
	t.Parallel()
	store := &fakeStore{chunks: []rag.ContextChunk{
		{Text: strings.Repeat("x", maxSnippet+10), Source: "github_readme", Type: rag.TypeReadme, Score: 0.5},
	}}
	r, err := NewRetrieveTool(store).Handle(context.Background(), makeReq(map[string]any{"query": "install", "top_k": float64(3)}))
	mustNotError(t, r, err)

	text := resultText(r)
	if !strings.Contains(text, "[1] github_readme (readme) score 0.500") || !strings.Contains(text, "...") {
		t.Errorf("result = %s", text)
	}
	if store.gotK != 3 {
		t.Errorf("top_k = %d", store.gotK)
	}
}

func TestRetrieveTool_EmptyAndErrors(t *testing.T) {
	t.Parallel()
	r, err := NewRetrieveTool(&fakeStore{}).Handle(context.Background(), makeReq(map[string]any{"query": "x"}))
	mustNotError(t, r, err)
	if !strings.Contains(resultText(r), "No indexed context") {
		t.Errorf("result = %s", resultText(r))
	}

	r, err = NewRetrieveTool(&fakeStore{}).Handle(context.Background(), makeReq(map[string]any{}))
	mustBeToolError(t, r, err, "'query' is required")

	r, err = NewRetrieveTool(&fakeStore{err: errors.New("closed")}).Handle(context.Background(), makeReq(map[string]any{"query": "x"}))
	mustBeToolError(t, r, err, "closed")
}

func TestStatsTool(t *testing.T) {
	t.Parallel()
	r, err := NewStatsTool(&fakeStore{count: 12}).Handle(context.Background(), makeReq(nil))
	mustNotError(t, r, err)
	if resultText(r) != "Indexed chunks: 12" {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Error("New without a generator should fail")
	}
	s, err := New(Config{Generator: &fakeGenerator{}, Context: &fakeStore{}})
	if err != nil || s == nil {
		t.Fatalf("New() = %v, %v", s, err)
	}
}
