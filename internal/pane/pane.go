// Package pane resolves where an agent can be reached inside tmux.
//
// An agent row carries two addresses. The stable form, session:window.pane,
// survives the session being torn down and recreated at the same
// coordinates. The ephemeral form (%N) is reassigned by tmux for every new
// pane and dangles after a restart. Every call site that needs to address an
// agent goes through Resolve and never reimplements the fallback.
package pane

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EphemeralSigil prefixes tmux's process-scoped pane ids.
const EphemeralSigil = "%"

var stablePattern = regexp.MustCompile(`^[^:]+:\d+\.\d+$`)

// Normalize trims surrounding whitespace. Whitespace-only input becomes "",
// which callers must treat as absent.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}

// Ptr normalizes s and returns nil for an absent value, so that empty input
// is stored as NULL rather than as a comparable empty string.
func Ptr(s string) *string {
	s = Normalize(s)
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences a nullable column, normalizing it.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return Normalize(*p)
}

// Resolve returns the address to deliver to: the stable pane when present,
// else the ephemeral pane id. ok is false when neither is usable.
func Resolve(paneID, stablePane *string) (addr string, ok bool) {
	if s := Value(stablePane); s != "" {
		return s, true
	}
	if p := Value(paneID); p != "" {
		return p, true
	}
	return "", false
}

// IsStable reports whether addr has the session:window.pane shape.
func IsStable(addr string) bool {
	if strings.HasPrefix(addr, EphemeralSigil) {
		return false
	}
	return stablePattern.MatchString(addr)
}

// IsEphemeral reports whether addr is a tmux %N pane id.
func IsEphemeral(addr string) bool {
	return len(addr) > len(EphemeralSigil) && strings.HasPrefix(addr, EphemeralSigil)
}

// Stable is a parsed session:window.pane address.
type Stable struct {
	Session string
	Window  int
	Pane    int
}

func (s Stable) String() string {
	return fmt.Sprintf("%s:%d.%d", s.Session, s.Window, s.Pane)
}

// ParseStable splits a stable address into its coordinates.
func ParseStable(addr string) (Stable, error) {
	addr = Normalize(addr)
	if !IsStable(addr) {
		return Stable{}, fmt.Errorf("pane: %q is not a session:window.pane address", addr)
	}
	i := strings.LastIndex(addr, ":")
	session, rest := addr[:i], addr[i+1:]
	win, pn, _ := strings.Cut(rest, ".")
	w, err := strconv.Atoi(win)
	if err != nil {
		return Stable{}, fmt.Errorf("pane: window in %q: %w", addr, err)
	}
	p, err := strconv.Atoi(pn)
	if err != nil {
		return Stable{}, fmt.Errorf("pane: pane in %q: %w", addr, err)
	}
	return Stable{Session: session, Window: w, Pane: p}, nil
}
