package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HollandsP/Evergreen-sub003/cmd/evergreen/commands"
	"github.com/HollandsP/Evergreen-sub003/logger"
)

var rootCmd = &cobra.Command{
	Use:   "evergreen",
	Short: "Evergreen - job scheduler and response cache for generation providers",
	Long: `Evergreen mediates access to expensive generation providers
(text-to-speech, text-to-image, text-to-video) with a persistent job queue,
a cost-aware response cache, and resource ceilings.

Available commands:
  run     - Run the scheduler daemon
  jobs    - Inspect and manage generation jobs
  stats   - Show job store statistics
  version - Show version information

Examples:
  evergreen run                # Start the daemon
  evergreen jobs ls            # List jobs
  evergreen jobs status <id>   # Show one job
  evergreen stats              # Job store statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
