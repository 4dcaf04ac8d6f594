package commands

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/mcpserver"
	"github.com/54b3r/libgen-go/internal/tracing"
)

// NewMCPCmd constructs the `libgen mcp` command, which serves the workflow
// as MCP tools over stdio.
func NewMCPCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve generate_code and context tools over MCP (stdio)",
		Long: `Run libgen as a Model Context Protocol server on stdin/stdout.

Tools:
  generate_code      run the workflow; optional output_file is written under --out
  retrieve_context   search indexed context
  context_stats      count indexed chunks

Logs go to stderr so they never corrupt the protocol stream.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			flush := tracing.Enable(tracing.SettingsFromEnv(), log)
			defer flush()

			rt, err := buildRuntime(ctx, log, buildOptions{})
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer rt.Close()

			s, err := mcpserver.New(mcpserver.Config{
				Generator:  rt.agent,
				Context:    rt.manager,
				OutputRoot: outDir,
			})
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", ".", "Directory generate_code may write output_file into")

	return cmd
}
