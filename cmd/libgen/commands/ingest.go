package commands

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/libgen-go/internal/config"
	"github.com/54b3r/libgen-go/internal/ingestion"
	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/tools"
)

// NewIngestCmd constructs the `libgen ingest` command, which indexes
// documentation pages, READMEs, and example files ahead of generation.
func NewIngestCmd() *cobra.Command {
	var (
		urls     []string
		readmes  []string
		examples []string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index documentation and examples into the context store",
		Long: `Fetch and index documentation into the vector store used by generate.

Indexed material is retrieved alongside whatever the workflow gathers at
generation time, so pre-ingesting internal or hard-to-crawl docs improves
results.

Store selection:
  VECTOR_BACKEND       sqlite (default), qdrant, or pgvector
  DATABASE_PATH        SQLite file (default: ./data/vector_store.db)
  QDRANT_*             Qdrant connection settings
  PGVECTOR_DSN         Postgres connection string
  EMBEDDING_*          Embedding provider overrides (see README)

Examples:
  libgen ingest --url https://www.python-httpx.org/quickstart/
  libgen ingest --readme ./vendor/httpx/README.md --examples ./snippets.md`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			var sources []ingestion.Source
			for _, u := range urls {
				sources = append(sources, ingestion.Source{Kind: ingestion.KindDocumentation, Location: u})
			}
			for _, p := range readmes {
				sources = append(sources, ingestion.Source{Kind: ingestion.KindReadme, Location: p})
			}
			for _, p := range examples {
				sources = append(sources, ingestion.Source{Kind: ingestion.KindExamples, Location: p})
			}
			if len(sources) == 0 {
				return fmt.Errorf("ingest: at least one --url, --readme, or --examples is required")
			}

			cr, err := openContext(ctx, log, config.WorkflowFromEnv())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer cr.Close()

			pipeline, err := ingestion.NewPipeline(tools.NewWebCrawler(tools.CrawlerConfig{}), cr.manager)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			bar := newProgressBar(len(sources)+1, "Ingesting")
			report, err := pipeline.Ingest(ctx, sources, func(msg string) {
				log.Debug(msg)
				bar.Describe(color.BlueString(msg))
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("pages", report.Pages),
				slog.Bool("readme", report.Readme),
				slog.Int("examples", report.Examples),
				slog.Int("indexed", report.Indexed),
			)
			color.Green("\n✓ Indexed %d chunks (%d pages, %d examples)", report.Indexed, report.Pages, report.Examples)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Documentation URL to ingest (repeatable)")
	cmd.Flags().StringArrayVar(&readmes, "readme", nil, "README file to ingest (repeatable)")
	cmd.Flags().StringArrayVar(&examples, "examples", nil, "File of code examples to ingest (repeatable)")

	return cmd
}
