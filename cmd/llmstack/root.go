package main

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	upFlags := &UpFlags{}

	root := &cobra.Command{
		Use:   "llmstack",
		Short: "Launcher for the local GPU inference stack",
		Long: `llmstack starts the local inference services (embeddings, reranker, llm)
in a fixed resource-aware order, waits for each to become ready before
starting the next, and shuts everything down cleanly on exit or failure.

Examples:
  llmstack up
  LLMSTACK_CTX_SIZE=4096 llmstack up --timeout 300s
  llmstack config --config llmstack.toml`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file (optional)")

	root.AddCommand(
		createUpCommand(globalFlags, upFlags),
		createConfigCommand(globalFlags),
	)
	return root
}
