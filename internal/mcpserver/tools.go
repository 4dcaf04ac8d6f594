// Package mcpserver exposes the code generation workflow as Model Context
// Protocol tools over stdio, so editors and agents can call it directly.
//
// Each tool is a struct with its dependencies injected via constructor:
// Definition returns the mcp.Tool schema and Handle processes a call.
// Failures the caller can act on are returned as tool errors, not Go errors.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/libgen-go/internal/rag"
	"github.com/54b3r/libgen-go/internal/workflow"
)

// maxSnippet caps chunk text shown by retrieve_context.
const maxSnippet = 500

// Generator runs the code generation workflow. *workflow.Agent satisfies it.
type Generator interface {
	Generate(ctx context.Context, library, task string, opts ...workflow.RunOption) (*workflow.Result, error)
}

// ContextStore queries the context store. *rag.ContextManager satisfies it.
type ContextStore interface {
	Retrieve(ctx context.Context, query, libraryName string, k int) ([]rag.ContextChunk, error)
	Count(ctx context.Context) (int, error)
}

// GenerateTool handles the generate_code MCP tool.
type GenerateTool struct {
	gen Generator
	// outputRoot confines output_file writes.
	outputRoot string
}

// NewGenerateTool creates a GenerateTool writing files under outputRoot.
func NewGenerateTool(gen Generator, outputRoot string) *GenerateTool {
	return &GenerateTool{gen: gen, outputRoot: outputRoot}
}

// Definition returns the MCP tool definition for generate_code.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_code",
		mcp.WithDescription(
			"Generate working code that uses a specific library. Searches and crawls the library's "+
				"documentation, analyses its GitHub repository, and grounds the generated code in what it finds.",
		),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name, e.g. httpx or fastapi"),
		),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("What the code should do"),
		),
		mcp.WithString("output_file",
			mcp.Description("Optional path, relative to the server's output directory, to write the code to"),
		),
	)
}

// Handle processes the generate_code tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	library := strings.TrimSpace(req.GetString("library", ""))
	task := strings.TrimSpace(req.GetString("task", ""))
	if library == "" || task == "" {
		return mcp.NewToolResultError("'library' and 'task' are required"), nil
	}

	res, err := t.gen.Generate(ctx, library, task)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Confidence: %.2f | iterations: %d | context chunks: %d\n", res.Confidence, res.Iterations, len(res.ContextUsed))
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}

	if out := strings.TrimSpace(req.GetString("output_file", "")); out != "" {
		path, err := workflow.WriteCode(t.outputRoot, out, res.Code)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("write %s: %v", out, err)), nil
		}
		fmt.Fprintf(&b, "Wrote %s\n", path)
	}

	fmt.Fprintf(&b, "\n```\n%s```\n", res.Code)
	if len(res.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, s := range res.Sources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RetrieveTool handles the retrieve_context MCP tool.
type RetrieveTool struct {
	store ContextStore
}

// NewRetrieveTool creates a RetrieveTool.
func NewRetrieveTool(store ContextStore) *RetrieveTool {
	return &RetrieveTool{store: store}
}

// Definition returns the MCP tool definition for retrieve_context.
func (t *RetrieveTool) Definition() mcp.Tool {
	return mcp.NewTool("retrieve_context",
		mcp.WithDescription("Search previously indexed documentation, READMEs, and code examples."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("library",
			mcp.Description("Library name to scope the query"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Max chunks (default: 5)"),
		),
	)
}

// Handle processes the retrieve_context tool call.
func (t *RetrieveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	chunks, err := t.store.Retrieve(ctx, query, req.GetString("library", ""), intArg(req, "top_k", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	if len(chunks) == 0 {
		return mcp.NewToolResultText("No indexed context matches your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d chunks:\n\n", len(chunks))
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s (%s) score %.3f\n%s\n\n", i+1, c.Source, c.Type, c.Score, truncate(c.Text, maxSnippet))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// StatsTool handles the context_stats MCP tool.
type StatsTool struct {
	store ContextStore
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(store ContextStore) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for context_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("context_stats",
		mcp.WithDescription("Show how many chunks are indexed in the context store."),
	)
}

// Handle processes the context_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := t.store.Count(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count chunks: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Indexed chunks: %d", n)), nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
