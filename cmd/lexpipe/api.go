package main

import (
	"github.com/spf13/cobra"

	"github.com/lexpipe/lexpipe/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Lexpipe server via HTTP.

These commands require a running server (lexpipe serve).
Use --server to specify a custom server URL.

Examples:
  lexpipe api health                      # Check server health
  lexpipe api documents upload <file>     # Upload a contract PDF
  lexpipe api documents get <id>          # Get document status
  lexpipe api extractions list            # List extraction results`,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Document management commands",
}

var extractionsCmd = &cobra.Command{
	Use:   "extractions",
	Short: "Extraction result commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))

	// Documents as subcommand group
	documentsCmd.AddCommand((&endpoints.UploadDocumentEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.GetDocumentEndpoint{}).Command(getServerURL))
	documentsCmd.AddCommand((&endpoints.GetExtractionEndpoint{}).Command(getServerURL))

	// Extractions as subcommand group
	extractionsCmd.AddCommand((&endpoints.ListExtractionsEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(documentsCmd)
	apiCmd.AddCommand(extractionsCmd)
	rootCmd.AddCommand(apiCmd)
}
