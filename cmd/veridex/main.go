// Package main implements the veridex CLI for manual operations against the
// veridexd HTTP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the veridexd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "veridex",
	Short: "CLI for veridexd analysis operations",
	Long: `veridex is a command-line interface for the veridexd fake-news risk
analysis daemon. It submits posts for analysis, lists analyses per trend,
ingests trusted-source documents, and checks server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8480", "veridexd server URL")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(healthCmd)
}
