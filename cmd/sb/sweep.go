package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/sweep"
	"github.com/zulandar/signalbox/internal/tmux"
)

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove agents whose tmux pane no longer exists",
		Long: "Compares every agent's address against the live tmux panes and deregisters the\n" +
			"ones that are gone, notifying their groups. With --watch, repeats on sweep.schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			s := sweep.New(a.svc, tmux.DefaultTmux)
			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				fmt.Fprintf(cmd.OutOrStdout(), "Sweeping on schedule %q\n", a.cfg.Sweep.Schedule)
				return s.Run(ctx, a.cfg.Sweep.Schedule)
			}

			removed, err := s.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(removed) == 0 {
				fmt.Fprintln(out, "No stale agents.")
				return nil
			}
			for _, r := range removed {
				failColor.Fprintf(out, "✗ %s (pane %s gone)\n", r.Name, r.Address)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep sweeping on the configured schedule")
	return cmd
}
