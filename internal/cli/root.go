// Package cli implements the tobacco-aps command-line interface: serve
// (run the HTTP API + NATS worker + auto-import scheduler), migrate (apply
// pending SQL migrations), and schedule (operate on scheduling tasks from
// a terminal), grounded on the conductor CLI's cobra root/subcommand
// layout.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates and returns the root cobra command.
func NewRootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tobacco-aps",
		Short:   "Advanced Planning & Scheduling engine for cigarette packing/feeding lines",
		Version: version,
		// Silence usage on errors to avoid duplicate help text.
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewScheduleCommand())

	return cmd
}
