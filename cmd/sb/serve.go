package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/mcpserver"
	"github.com/zulandar/signalbox/internal/sweep"
	"github.com/zulandar/signalbox/internal/tmux"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent tools over MCP on stdio",
		Long: "Runs a Model Context Protocol server on stdin/stdout exposing register, broadcast,\n" +
			"direct_message, discover and the history tools. When sweep.enabled is set the\n" +
			"stale-pane sweep also runs on its schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Sweep.Enabled {
				go runSweeper(ctx, sweep.New(a.svc, tmux.DefaultTmux), a.cfg.Sweep.Schedule)
			}
			return mcpserver.Run(ctx, a.svc, Version)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

func runSweeper(ctx context.Context, s *sweep.Sweeper, schedule string) {
	if err := s.Run(ctx, schedule); err != nil {
		log.Printf("%v", err)
	}
}
