package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexpipe/lexpipe/internal/config"
	"github.com/lexpipe/lexpipe/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Lexpipe server",
	Long: `Start the Lexpipe HTTP server and pipeline workers.

Documents uploaded while a previous process was running are picked up
and resumed on start.

The server provides:
  - /health            - Basic server health check
  - /ready             - Readiness check (includes database status)
  - /api/documents     - Upload and query contract documents
  - /api/extractions   - Query extraction results

Examples:
  lexpipe serve                  # Start on default port 8080
  lexpipe serve --port 3000      # Start on custom port
  lexpipe serve --host 0.0.0.0   # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		cfg := mgr.Get().Resolved()
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		srv, err := server.New(cfg, logger)
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
