package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/libgen-go/internal/logging"
	"github.com/54b3r/libgen-go/internal/server"
	"github.com/54b3r/libgen-go/internal/tracing"
)

// NewServeCmd constructs the `libgen serve` command, which starts the HTTP
// server.
func NewServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the libgen HTTP server",
		Long: `Start the libgen HTTP server.

Endpoints:
  POST /api/generate         SSE stream of stage events, then result or error
  POST /api/context/search   retrieve indexed chunks
  GET  /api/context/stats    indexed chunk count
  GET  /api/health           liveness
  GET  /api/ready            dependency readiness
  GET  /metrics              Prometheus metrics

Set LIBGEN_API_KEY to require a Bearer token on /api/generate and /api/context/*.

Examples:
  libgen serve
  libgen serve --port 9090
  MODEL_PROVIDER=azure libgen serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			flush := tracing.Enable(tracing.SettingsFromEnv(), log)
			defer flush()

			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("LIBGEN_HOST"); v != "" {
					host = v
				}
			}
			if !cmd.Flags().Changed("port") {
				if v, err := strconv.Atoi(os.Getenv("LIBGEN_PORT")); err == nil && v > 0 {
					port = v
				}
			}

			rt, err := buildRuntime(ctx, log, buildOptions{registry: prometheus.DefaultRegisterer})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer rt.Close()

			srv, err := server.New(rt.agent, rt.manager, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(rt),
				APIKey:  os.Getenv("LIBGEN_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting", slog.String("host", host), slog.Int("port", port))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: LIBGEN_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: LIBGEN_PORT)")

	return cmd
}
