package main

import (
	"github.com/spf13/cobra"

	"github.com/lexpipe/lexpipe/internal/api"
	"github.com/lexpipe/lexpipe/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "lexpipe",
	Short: "Contract clause extraction pipeline for PDF documents",
	Long: `Lexpipe extracts structured contract clauses from uploaded PDF documents.

Each document moves through a durable three-stage pipeline:
  - Text extraction from the PDF
  - LLM-backed structured clause extraction
  - Idempotent result storage (object store + database)

Interrupted runs resume automatically when the server restarts.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lexpipe/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
