package mcpserver

import (
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/54b3r/libgen-go/internal/version"
)

// instructions is sent to clients on initialize.
const instructions = `libgen generates code for a named library, grounded in that library's
documentation and repository. Call generate_code with the library and task.
Use retrieve_context to inspect what has already been indexed.`

// Config holds the settings for New.
type Config struct {
	// Generator runs generate_code. Required.
	Generator Generator
	// Context backs retrieve_context and context_stats. When nil those tools
	// are not registered.
	Context ContextStore
	// OutputRoot confines generate_code's output_file (default: ".").
	OutputRoot string
}

// New creates the MCP server with every available tool registered.
func New(cfg Config) (*server.MCPServer, error) {
	if cfg.Generator == nil {
		return nil, errors.New("mcpserver: generator must not be nil")
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "."
	}

	s := server.NewMCPServer(
		"libgen",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	generate := NewGenerateTool(cfg.Generator, cfg.OutputRoot)
	s.AddTool(generate.Definition(), generate.Handle)

	if cfg.Context != nil {
		retrieve := NewRetrieveTool(cfg.Context)
		s.AddTool(retrieve.Definition(), retrieve.Handle)

		stats := NewStatsTool(cfg.Context)
		s.AddTool(stats.Definition(), stats.Handle)
	}

	return s, nil
}
