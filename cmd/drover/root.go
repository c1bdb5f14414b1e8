package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCfgFile is the explicit config path from --config.
var rootCfgFile string

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "Task delegation and workflow orchestration across AI workers",
	Long: `Drover delegates tasks to a pool of AI workers and runs multi-step
workflows across them.

Workers are CLI tools or Anthropic API endpoints declared in configuration.
Each task is matched to a worker by capability, load, priority, or past
performance, with automatic retry on a fallback worker when an attempt fails.

Core commands:
  run       Delegate a single task through the strategy engine
  route     Route a task directly, with fallback chain and route caching
  workflow  Execute a multi-step workflow from a YAML file
  workers   Show the worker pool, optionally as a live dashboard

Configuration is read from ~/.config/drover/config.yaml, overridden by a
.drover.yaml in the project tree and DROVER_* environment variables.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCfgFile, "config", "", "Path to config file (skips the normal search)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
