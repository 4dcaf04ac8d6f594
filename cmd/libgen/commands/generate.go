package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/store"
	"github.com/54b3r/libgen-go/internal/workflow"
)

// lowConfidence is the score below which a result is flagged in yellow.
const lowConfidence = 0.5

// NewGenerateCmd constructs the `libgen generate` command, which runs the
// full workflow for one library and task and prints or writes the code.
func NewGenerateCmd() *cobra.Command {
	var (
		outFile   string
		asJSON    bool
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "generate <library> <task>",
		Short: "Generate code that uses a library",
		Long: `Generate working code that uses the named library.

The task may span several arguments; they are joined with spaces.

Examples:
  libgen generate httpx "fetch a page with retries and a timeout"
  libgen generate fastapi build a CRUD API for todo items -o app.py
  TARGET_LANGUAGE=Go libgen generate cobra "a CLI with two subcommands"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)
			library, task := args[0], strings.Join(args[1:], " ")

			spinner := newSpinner("Starting")
			rt, err := buildRuntime(ctx, log, buildOptions{
				onPage: func(u string) { spinner.Describe(color.CyanString("Crawling %s", u)) },
			})
			if err != nil {
				_ = spinner.Clear()
				return fmt.Errorf("generate: %w", err)
			}
			defer rt.Close()

			observe := func(stage workflow.Stage, st workflow.State, elapsed time.Duration) {
				spinner.Describe(color.CyanString("%s done in %s", stage, elapsed.Round(time.Millisecond)))
				_ = spinner.Add(1)
			}

			res, err := rt.agent.Generate(ctx, library, task, workflow.WithObserver(observe))
			_ = spinner.Finish()
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			if !noHistory {
				recordRun(ctx, log, store.Run{
					Library:    library,
					Task:       task,
					Language:   rt.language,
					Confidence: res.Confidence,
					Iterations: res.Iterations,
					Warnings:   len(res.Warnings),
					Code:       res.Code,
				})
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			printResult(res)

			if outFile != "" {
				path, err := workflow.WriteCode(".", outFile, res.Code)
				if err != nil {
					return fmt.Errorf("generate: %w", err)
				}
				color.Green("✓ Wrote %s", path)
				return nil
			}
			fmt.Println(res.Code)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the code to this file (relative to the working directory)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in ~/.libgen/history.db")

	return cmd
}

// recordRun appends run to the history database. Failures are logged and
// never fail the command.
func recordRun(ctx context.Context, log *slog.Logger, run store.Run) {
	path, err := store.DefaultDBPath()
	if err != nil {
		log.Warn("history disabled", slog.String("error", err.Error()))
		return
	}
	hs, err := store.Open(path)
	if err != nil {
		log.Warn("history disabled", slog.String("error", err.Error()))
		return
	}
	defer hs.Close()
	id, err := hs.Append(ctx, run)
	if err != nil {
		log.Warn("history: append failed", slog.String("error", err.Error()))
		return
	}
	log.Debug("history: run recorded", slog.Int64("id", id))
}

// printResult writes the run summary to stderr so stdout carries only code.
func printResult(res *workflow.Result) {
	conf := color.GreenString("%.2f", res.Confidence)
	if res.Confidence < lowConfidence {
		conf = color.YellowString("%.2f", res.Confidence)
	}
	stderrf("Confidence: %s | iterations: %d | context chunks: %d", conf, res.Iterations, len(res.ContextUsed))
	for _, w := range res.Warnings {
		stderrf("%s %s", color.YellowString("warning:"), w)
	}
	for _, s := range res.Sources {
		stderrf("  source: %s", s)
	}
}

// newSpinner returns an indeterminate progress indicator on stderr.
func newSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// newProgressBar returns a bounded progress bar on stderr.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
