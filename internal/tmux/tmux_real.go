//go:build !unittest

package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RealTmux is the production implementation that calls the real tmux binary.
type RealTmux struct{}

func (RealTmux) Locate(paneID string) (Location, error) {
	cmd := exec.Command("tmux", "display-message", "-p", "-t", paneID, locationFormat)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Location{}, fmt.Errorf("locate pane %q: %s: %w", paneID, strings.TrimSpace(string(out)), err)
	}
	return parseLocation(strings.TrimSpace(string(out)))
}

func (RealTmux) ListAllPanes() ([]Location, error) {
	cmd := exec.Command("tmux", "list-panes", "-a", "-F", locationFormat)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("list panes: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return parseLocations(string(out)), nil
}

func (RealTmux) SendKeys(ctx context.Context, target, text string) error {
	cmd := exec.CommandContext(ctx, "tmux", "send-keys", "-t", target, "-l", text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("send keys to %q: %s: %w", target, strings.TrimSpace(string(out)), err)
	}
	cmd = exec.CommandContext(ctx, "tmux", "send-keys", "-t", target, "Enter")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("send enter to %q: %s: %w", target, strings.TrimSpace(string(out)), err)
	}
	return nil
}
