// Package tmux wraps the tmux binary: locating the current pane, listing
// live panes and typing text into a pane.
package tmux

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zulandar/signalbox/internal/pane"
)

// EnvPane is set by tmux inside every pane it spawns.
const EnvPane = "TMUX_PANE"

// locationFormat prints both address forms of a pane on one line.
const locationFormat = "#{pane_id} #{session_name}:#{window_index}.#{pane_index}"

// Location is a pane's ephemeral id and its durable session:window.pane
// address.
type Location struct {
	PaneID string
	Stable string
}

// Tmux abstracts tmux operations for testability.
type Tmux interface {
	// Locate returns the location of paneID.
	Locate(paneID string) (Location, error)
	// ListAllPanes returns every pane on the server.
	ListAllPanes() ([]Location, error)
	// SendKeys types text literally into target and presses Enter. It
	// returns only after the tmux process has exited; cancelling ctx kills it.
	SendKeys(ctx context.Context, target, text string) error
}

// DefaultTmux is the default tmux implementation used by the package.
// Set to RealTmux{} in tmux_real.go (excluded from test builds via build tag).
var DefaultTmux Tmux = RealTmux{}

// CurrentPane returns $TMUX_PANE, or "" outside tmux.
func CurrentPane() string {
	return strings.TrimSpace(os.Getenv(EnvPane))
}

// LocateCurrent resolves the pane this process runs in.
func LocateCurrent(t Tmux) (Location, error) {
	id := CurrentPane()
	if id == "" {
		return Location{}, fmt.Errorf("tmux: %s not set (not running inside tmux)", EnvPane)
	}
	return t.Locate(id)
}

// parseLocation parses one line of locationFormat output.
func parseLocation(line string) (Location, error) {
	id, stable, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return Location{}, fmt.Errorf("tmux: unexpected pane line %q", line)
	}
	loc := Location{PaneID: id, Stable: strings.TrimSpace(stable)}
	if !pane.IsEphemeral(loc.PaneID) {
		return Location{}, fmt.Errorf("tmux: unexpected pane id %q", loc.PaneID)
	}
	if !pane.IsStable(loc.Stable) {
		loc.Stable = ""
	}
	return loc, nil
}

// parseLocations parses multi-line list-panes output, skipping blank or
// malformed lines.
func parseLocations(out string) []Location {
	var locs []Location
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if loc, err := parseLocation(l); err == nil {
			locs = append(locs, loc)
		}
	}
	return locs
}

// LiveSet returns every address (both forms) of the given panes.
func LiveSet(locs []Location) map[string]bool {
	live := make(map[string]bool, 2*len(locs))
	for _, l := range locs {
		if l.PaneID != "" {
			live[l.PaneID] = true
		}
		if l.Stable != "" {
			live[l.Stable] = true
		}
	}
	return live
}
