// Package commands defines all Cobra CLI commands for the libgen binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/libgen-go/internal/audit"
	"github.com/54b3r/libgen-go/internal/config"
	"github.com/54b3r/libgen-go/internal/logging"
)

// Persistent flag values shared by every subcommand.
var (
	// configPath holds the --config flag value for YAML config file override.
	configPath string
	// envFile holds the --env-file flag value.
	envFile string
	// verbose forces debug logging.
	verbose bool
)

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "libgen",
		Short: "libgen generates code for any library from its own documentation",
		Long: `libgen writes working code that uses a named library.

For each request it searches and crawls the library's documentation, analyses
its GitHub repository, extracts code examples, indexes everything into a
local vector store, and grounds the generated code in the most relevant
context.

Model provider is selected via the MODEL_PROVIDER environment variable, a
.env file, or a YAML config file (~/.libgen/config.yaml).
See 'libgen --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var opts []logging.Option
			if verbose {
				opts = append(opts, logging.Verbose())
			}
			log := logging.New(opts...)

			// Precedence: process env, then .env, then YAML.
			if _, err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// LOG_LEVEL may have come from a file.
			log = logging.New(opts...)
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.libgen/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		NewGenerateCmd(),
		NewIngestCmd(),
		NewContextCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
