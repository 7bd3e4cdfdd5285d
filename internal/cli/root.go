package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd returns the base command when called without any subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "heartbeat",
		Short:   "Periodic CPU usage heartbeat sampler",
		Version: version,
		Long: `heartbeat samples the host idle and total CPU time counters as 32-bit
wrapping scheduler counters, converts them to a CPU usage percentage and
publishes it as a heartbeat metric to the configured sinks.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If no subcommand is provided, print help
			return cmd.Help()
		},
	}

	root.AddCommand(newRunCmd())
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
