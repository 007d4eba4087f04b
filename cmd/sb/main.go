package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sb",
		Short: "Signalbox: agent directory and message routing over tmux",
		Long:  "Signalbox lets agents running in tmux panes discover each other and exchange broadcast, direct and channel messages.",

		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newDeregisterCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newGroupsCmd())
	cmd.AddCommand(newBroadcastCmd())
	cmd.AddCommand(newDMCmd())
	cmd.AddCommand(newDMHistoryCmd())
	cmd.AddCommand(newChannelCmd())
	cmd.AddCommand(newMessagesCmd())
	cmd.AddCommand(newMetricsCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newDBCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sb %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
