package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/libgen-go/internal/store"
)

// NewHistoryCmd constructs the `libgen history` command, which lists past
// generation runs or prints the code of one of them.
func NewHistoryCmd() *cobra.Command {
	var (
		library string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List past generation runs, or print the code of one",
		Long: `List generation runs recorded in ~/.libgen/history.db, newest first.

With an id, print that run's generated code to stdout.

Examples:
  libgen history
  libgen history --library httpx -n 5
  libgen history 12 > client.py`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, err := store.DefaultDBPath()
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			hs, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer hs.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("history: invalid id %q", args[0])
				}
				run, err := hs.Get(ctx, id)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("history: no run with id %d", id)
				}
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
				fmt.Fprintln(out, run.Code)
				return nil
			}

			runs, err := hs.Recent(ctx, library, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(runs) == 0 {
				color.Yellow("no recorded runs")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  %-12s %.2f  %s\n",
					color.CyanString("%4d", r.ID),
					r.CreatedAt.Format("2006-01-02 15:04"),
					r.Library, r.Confidence, oneLine(r.Task, 60))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&library, "library", "l", "", "Only list runs for this library")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")

	return cmd
}

// oneLine collapses whitespace in s and truncates it to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
