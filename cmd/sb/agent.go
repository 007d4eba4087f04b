package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/service"
)

func newRegisterCmd() *cobra.Command {
	var (
		configPath  string
		group       string
		description string
		paneID      string
		stablePane  string
	)

	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register an agent",
		Long: "Registers an agent under name. Without --pane/--stable-pane the current tmux pane\n" +
			"is located after the row is written.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.Register(cmd.Context(), service.RegisterRequest{
				Name:        args[0],
				Description: description,
				Group:       group,
				PaneID:      paneID,
				StablePane:  stablePane,
			})
			if err != nil {
				return err
			}
			if res.Pending {
				a.svc.Wait()
				if agent := a.svc.Dir.Get(cmd.Context(), args[0]); agent != nil {
					res.Address = service.View(*agent).Address
				}
				res.Pending = false
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVarP(&group, "group", "g", "", "group to join (default from config)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "what this agent is working on")
	cmd.Flags().StringVar(&paneID, "pane", "", "tmux pane id, e.g. %3")
	cmd.Flags().StringVar(&stablePane, "stable-pane", "", "session:window.pane address")
	return cmd
}

func newDeregisterCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deregister <name>",
		Short: "Remove an agent and notify its group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.Deregister(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

func newDiscoverCmd() *cobra.Command {
	var (
		configPath string
		group      string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			agents := a.svc.Discover(cmd.Context(), group)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), agents)
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.RenderAgents(agents, group))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVarP(&group, "group", "g", "", "only list this group")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newGroupsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List groups with member counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), service.RenderGroups(a.svc.Groups(cmd.Context())))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

// joinMessage joins the remaining positional args into one message.
func joinMessage(args []string) (string, error) {
	msg := strings.TrimSpace(strings.Join(args, " "))
	if msg == "" {
		return "", fmt.Errorf("message is required")
	}
	return msg, nil
}
