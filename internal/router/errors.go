package router

import (
	"fmt"
	"strings"

	"github.com/zulandar/signalbox/internal/store"
)

// NotRegisteredError means the sender has no row, or a row whose pane has
// not been assigned yet.
type NotRegisteredError struct {
	Name       string
	Incomplete bool
}

func (e *NotRegisteredError) Error() string {
	if e.Incomplete {
		return fmt.Sprintf("agent %q registration is incomplete (pane not assigned yet); wait a moment and retry", e.Name)
	}
	return fmt.Sprintf("agent %q is not registered; register first", e.Name)
}

// TargetNotFoundError means the named recipient has no row.
type TargetNotFoundError struct {
	Name  string
	Known []string
}

func (e *TargetNotFoundError) Error() string {
	known := "(none)"
	if len(e.Known) > 0 {
		known = strings.Join(e.Known, ", ")
	}
	return fmt.Sprintf("agent %q not found. Known agents: %s", e.Name, known)
}

// NoAddressError means the recipient exists but resolves to no pane.
type NoAddressError struct {
	Name string
}

func (e *NoAddressError) Error() string {
	return fmt.Sprintf("agent %q has no pane available", e.Name)
}

// NoTargetsError means a broadcast scope selected nobody. An empty Group
// means no other agent is reachable in any group.
type NoTargetsError struct {
	Group     string
	Available []store.GroupCount
}

func (e *NoTargetsError) Error() string {
	if e.Group == "" {
		return "no other agents online"
	}
	msg := fmt.Sprintf("no other agents in group %q", e.Group)
	if len(e.Available) > 0 {
		parts := make([]string, len(e.Available))
		for i, g := range e.Available {
			parts[i] = fmt.Sprintf("%s (%d)", g.Name, g.Count)
		}
		msg += ". Available groups: " + strings.Join(parts, ", ")
	}
	return msg
}
