// Package commands implements the alarmd CLI subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/volk7/alerting/logger"
)

// RootCmd is the alarmd entrypoint command.
var RootCmd = &cobra.Command{
	Use:   "alarmd",
	Short: "alarmd - at-scale alarm scheduling service",
	Long: `alarmd schedules, persists, and fires timezone-aware alarms at scale.

Available commands:
  serve    - start the HTTP API, scheduler tick loop, and lifecycle controller
  migrate  - apply pending database migrations without starting the service
  version  - show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logger.SetVerbosity(verbosity)
		if verbosity > 0 {
			logger.Infow("verbosity set", "level", logger.LevelName(verbosity), "shows", logger.VerbosityDescription(verbosity))
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().Bool("json-logs", false, "emit structured JSON logs instead of the console format")
	RootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity (-v, -vv, -vvv)")

	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(MigrateCmd)
	RootCmd.AddCommand(VersionCmd)
}
