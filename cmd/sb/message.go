package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/service"
)

func newBroadcastCmd() *cobra.Command {
	var (
		configPath string
		from       string
		group      string
		priority   string
	)

	cmd := &cobra.Command{
		Use:   "broadcast <message...>",
		Short: "Send a message to every other agent in a group",
		Long: "Broadcasts to the sender's group, or --group. Use --group all to reach every group.\n" +
			"Deliveries happen one at a time; a failed target does not stop the rest.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := joinMessage(args)
			if err != nil {
				return err
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.svc.Broadcast(cmd.Context(), from, msg, priority, group)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), service.RenderBroadcast(rep))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVarP(&from, "from", "f", "", "sender agent name (required)")
	cmd.Flags().StringVarP(&group, "group", "g", "", "target group, or all")
	cmd.Flags().StringVarP(&priority, "priority", "p", messaging.PriorityNormal, "message priority (normal, high, urgent)")
	cmd.MarkFlagRequired("from")
	return cmd
}

func newDMCmd() *cobra.Command {
	var (
		configPath string
		from       string
	)

	cmd := &cobra.Command{
		Use:   "dm <to> <message...>",
		Short: "Send a direct message to one agent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := joinMessage(args[1:])
			if err != nil {
				return err
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.svc.DirectMessage(cmd.Context(), from, args[0], msg)
			if err != nil {
				return err
			}
			if !out.OK() {
				return fmt.Errorf("%s", service.RenderDM(out))
			}
			okColor.Fprintln(cmd.OutOrStdout(), service.RenderDM(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVarP(&from, "from", "f", "", "sender agent name (required)")
	cmd.MarkFlagRequired("from")
	return cmd
}

func newDMHistoryCmd() *cobra.Command {
	var (
		configPath string
		from       string
		limit      int
		detailed   bool
	)

	cmd := &cobra.Command{
		Use:   "dm-history <with-agent>",
		Short: "Show recent direct messages between two agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			msgs := a.svc.DMHistory(cmd.Context(), from, args[0], limit)
			fmt.Fprintln(cmd.OutOrStdout(), service.RenderHistory(msgs, detailed))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVarP(&from, "from", "f", "", "your agent name (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", messaging.DefaultHistoryLimit, "maximum messages")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include ids, timestamps and types")
	cmd.MarkFlagRequired("from")
	return cmd
}

func newMessagesCmd() *cobra.Command {
	var (
		configPath string
		since      uint64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Print log messages after an id as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			page := a.svc.MessagesSince(cmd.Context(), since, limit)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"messages": messaging.Views(page.Messages),
				"last_id":  page.LastID,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().Uint64Var(&since, "since", 0, "only messages with a larger id")
	cmd.Flags().IntVarP(&limit, "limit", "n", messaging.DefaultSinceLimit, "maximum messages")
	return cmd
}

func newMetricsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print agent, group and message counts as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.svc.Metrics(cmd.Context()))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}
