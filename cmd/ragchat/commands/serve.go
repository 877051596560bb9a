package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/server"
)

// NewServeCmd constructs the `ragchat serve` command, which starts the HTTP
// server exposing the chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragchat HTTP server",
		Long: `Start the ragchat HTTP server on localhost.

The server exposes POST /api/chat (SSE token stream), GET /ws/events
(WebSocket with multiplexed query streams), GET /api/history, health and
readiness probes, and Prometheus metrics at /metrics.

When DATA_LOAD_ON_START is true and DATA_FILE points at a CSV document
collection, the collection is ingested before the server accepts traffic.

Examples:
  ragchat serve
  ragchat serve --port 9090
  MODEL_PROVIDER=openai ragchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			stack, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stack.close()

			// Startup ingestion: load the document collection before the
			// server accepts traffic so first queries see a populated index.
			if os.Getenv("DATA_LOAD_ON_START") == "true" {
				dataFile := os.Getenv("DATA_FILE")
				if dataFile == "" {
					return fmt.Errorf("serve: DATA_LOAD_ON_START is true but DATA_FILE is not set")
				}
				if err := ingestDataFile(ctx, stack.service, dataFile, log); err != nil {
					return fmt.Errorf("serve: startup ingestion: %w", err)
				}
			}

			srv, err := server.New(stack.service, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: stack.pingers,
				APIKey:  os.Getenv("RAGCHAT_API_KEY"),
				History: stack.history,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
