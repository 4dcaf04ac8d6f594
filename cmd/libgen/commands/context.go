package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/libgen-go/internal/config"
	"github.com/54b3r/libgen-go/internal/logging"
)

// NewContextCmd constructs the `libgen context` command group for inspecting
// and maintaining the context store.
func NewContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect or clear the context store",
	}
	cmd.AddCommand(newContextStatsCmd(), newContextSearchCmd(), newContextClearCmd())
	return cmd
}

func newContextStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of indexed chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cr, err := openContext(ctx, logging.FromContext(ctx), config.WorkflowFromEnv())
			if err != nil {
				return fmt.Errorf("context stats: %w", err)
			}
			defer cr.Close()

			n, err := cr.manager.Count(ctx)
			if err != nil {
				return fmt.Errorf("context stats: %w", err)
			}
			fmt.Printf("backend: %s\nchunks:  %d\n", cr.backend, n)
			return nil
		},
	}
}

func newContextSearchCmd() *cobra.Command {
	var (
		library string
		topK    int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve indexed chunks for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cr, err := openContext(ctx, logging.FromContext(ctx), config.WorkflowFromEnv())
			if err != nil {
				return fmt.Errorf("context search: %w", err)
			}
			defer cr.Close()

			chunks, err := cr.manager.Retrieve(ctx, args[0], library, topK)
			if err != nil {
				return fmt.Errorf("context search: %w", err)
			}
			if len(chunks) == 0 {
				color.Yellow("no matching context")
				return nil
			}
			for i, c := range chunks {
				fmt.Printf("%s %s (%s) %.3f\n%s\n\n", color.CyanString("[%d]", i+1), c.Source, c.Type, c.Score, c.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&library, "library", "l", "", "Library name to scope the query")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks (default: TOP_K_RESULTS)")
	return cmd
}

func newContextClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every indexed chunk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("context clear: refusing without --yes")
			}
			ctx := cmd.Context()
			cr, err := openContext(ctx, logging.FromContext(ctx), config.WorkflowFromEnv())
			if err != nil {
				return fmt.Errorf("context clear: %w", err)
			}
			defer cr.Close()

			if err := cr.manager.Clear(ctx); err != nil {
				return fmt.Errorf("context clear: %w", err)
			}
			color.Green("✓ Cleared %s context store", cr.backend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
