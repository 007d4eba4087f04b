// Package delivery injects text into an addressed pane.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/tmux"
)

// DefaultTimeout bounds one delivery attempt when none is configured.
const DefaultTimeout = 10 * time.Second

// Deliverer makes one attempt to type text into the pane at address.
type Deliverer interface {
	Deliver(ctx context.Context, address, text string) error
}

// New returns the Deliverer selected by cfg: an external command when one
// is configured, tmux send-keys otherwise.
func New(cfg config.DeliveryConfig) Deliverer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cmd := strings.TrimSpace(cfg.Command); cmd != "" {
		return Command{Path: cmd, Timeout: timeout}
	}
	return TmuxKeys{Tmux: tmux.DefaultTmux, Timeout: timeout}
}

// Command runs an external program as `<Path> <address> <text>`. Exit
// status 0 is success.
type Command struct {
	Path    string
	Timeout time.Duration
}

func (c Command) Deliver(ctx context.Context, address, text string) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, c.Path, address, text).CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("delivery: %s timed out after %s", address, c.Timeout)
	}
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("delivery: %s: %s: %w", address, msg, err)
		}
		return fmt.Errorf("delivery: %s: %w", address, err)
	}
	return nil
}

// TmuxKeys types text into the pane with tmux send-keys.
type TmuxKeys struct {
	Tmux    tmux.Tmux
	Timeout time.Duration
}

func (k TmuxKeys) Deliver(ctx context.Context, address, text string) error {
	if k.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.Timeout)
		defer cancel()
	}
	err := k.Tmux.SendKeys(ctx, address, text)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("delivery: %s timed out after %s: %w", address, k.Timeout, ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("delivery: %w", err)
	}
	return nil
}
