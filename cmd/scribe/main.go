// Package main is the CLI entry point for scribe, the transcript router.
//
// Scribe routes voice-note transcripts landing in blob storage to downstream
// agents: a weekly work journal, a memory archive, and a repository creator.
//
// # Basic Usage
//
// Run the event listener:
//
//	scribe serve --config scribe.yaml
//
// Process one transcript by key, for ops and debugging:
//
//	scribe process transcripts/work/2024/01/15/mon.txt --config scribe.yaml
//
// Check dependency health:
//
//	scribe health --config scribe.yaml
//
// Audit the repository idempotency ledger:
//
//	scribe ledger verify --config scribe.yaml
//
// # Environment Variables
//
//   - SCRIBE_CONFIG: path to the configuration file (default: scribe.yaml)
//   - AWS credentials and region resolve through the standard SDK chain.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scribe",
		Short:         "Route voice-note transcripts to journal, memory, and repository agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("SCRIBE_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "scribe.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to configuration file")

	rootCmd.AddCommand(
		newServeCmd(),
		newProcessCmd(),
		newHealthCmd(),
		newLedgerCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scribe %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
