package main

import (
	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Quotient server",
	Long: `Start the Quotient HTTP server.

The config file is watched while the server runs; edits rebuild the
extraction services without a restart. Loaded models are released when
the server shuts down (via Ctrl+C or SIGTERM).

The server provides:
  - /health         - Basic server health check
  - /status         - Hardware, model and provider status
  - /api/...        - Extraction endpoints (see /swagger)

Examples:
  quotient serve                    # Start on server.port from config (default 8080)
  quotient serve --port 3000        # Start on custom port
  quotient serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := e.home.EnsureExists(); err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: e.config,
			Home:          e.home,
			Logger:        e.logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port from config)")

	rootCmd.AddCommand(serveCmd)
}
