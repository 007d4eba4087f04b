package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/service"
)

func newChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Channel commands (a channel is a group)",
	}

	cmd.AddCommand(newChannelSendCmd())
	cmd.AddCommand(newChannelHistoryCmd())
	cmd.AddCommand(newChannelListCmd())
	return cmd
}

func newChannelSendCmd() *cobra.Command {
	var (
		configPath string
		from       string
	)

	cmd := &cobra.Command{
		Use:   "send <channel> <message...>",
		Short: "Post to a channel",
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

			rep, err := a.svc.ChannelSend(cmd.Context(), from, args[0], msg)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), service.RenderChannel(rep))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVarP(&from, "from", "f", "", "sender agent name (required)")
	cmd.MarkFlagRequired("from")
	return cmd
}

func newChannelHistoryCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		detailed   bool
	)

	cmd := &cobra.Command{
		Use:   "history <channel>",
		Short: "Show recent messages on a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			msgs := a.svc.ChannelHistory(cmd.Context(), args[0], limit)
			fmt.Fprintln(cmd.OutOrStdout(), service.RenderHistory(msgs, detailed))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", messaging.DefaultHistoryLimit, "maximum messages")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include ids, timestamps and types")
	return cmd
}

func newChannelListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List channels with member and message counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), service.RenderChannels(a.svc.ChannelList(cmd.Context())))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}
