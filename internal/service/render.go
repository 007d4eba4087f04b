package service

import (
	"fmt"
	"strings"

	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/router"
	"github.com/zulandar/signalbox/internal/store"
)

// Text renderings used by the MCP tools and the CLI.

func (r *RegisterResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Registered as %s in group %s.\n", r.AgentID, r.Group)
	if len(r.Peers) == 0 {
		b.WriteString("Peers: none")
	} else {
		b.WriteString("Peers: " + strings.Join(r.Peers, ", "))
	}
	if len(r.Evicted) > 0 {
		b.WriteString("\nReplaced stale registration: " + strings.Join(r.Evicted, ", "))
	}
	switch {
	case r.Address != "":
		b.WriteString("\nPane: " + r.Address)
	case r.Pending:
		b.WriteString("\nPane assignment in progress; wait a moment before sending.")
	default:
		b.WriteString("\nPane: none (messages cannot reach this agent)")
	}
	return b.String()
}

func (r *DeregisterResult) String() string {
	if r.Agent == nil {
		return fmt.Sprintf("%s was not registered; nothing to do.", r.Name)
	}
	s := fmt.Sprintf("Deregistered %s (group: %s).", r.Agent.Name, r.Agent.Group)
	if r.Notices != nil && len(r.Notices.Outcomes) > 0 {
		s += fmt.Sprintf(" Notified %s.", plural(r.Notices.Delivered(), "peer", "peers"))
	}
	return s
}

// RenderReport renders a broadcast or channel report with one outcome per
// line.
func RenderReport(kind string, rep *router.Report) string {
	var b strings.Builder
	header := fmt.Sprintf("%s to %s: %d/%d delivered", kind, rep.Scope, rep.Delivered(), len(rep.Outcomes))
	if rep.Message != nil {
		header = fmt.Sprintf("%s #%d", header, rep.Message.ID)
		if rep.Message.Priority != "" && rep.Message.Priority != messaging.PriorityNormal {
			header += " [" + rep.Message.Priority + "]"
		}
	}
	b.WriteString(header)
	for _, o := range rep.Outcomes {
		b.WriteString("\n" + o.String())
	}
	return b.String()
}

// RenderBroadcast renders a broadcast report.
func RenderBroadcast(rep *router.Report) string {
	return RenderReport("Broadcast", rep)
}

// RenderChannel renders the result of a channel send.
func RenderChannel(rep *router.Report) string {
	if len(rep.Outcomes) == 0 {
		return fmt.Sprintf("Sent to #%s: 0 recipients (message logged)", rep.Scope)
	}
	return RenderReport("#"+rep.Scope, rep) + "\n" +
		fmt.Sprintf("Sent to #%s: %s", rep.Scope, plural(len(rep.Outcomes), "recipient", "recipients"))
}

// RenderDM renders a direct message outcome.
func RenderDM(o *router.Outcome) string {
	if o.OK() {
		return fmt.Sprintf("DM delivered to %s (%s)", o.Name, o.Address)
	}
	return fmt.Sprintf("DM to %s logged but delivery failed: %v", o.Name, o.Err)
}

// RenderAgents renders a discover listing.
func RenderAgents(agents []AgentView, group string) string {
	if len(agents) == 0 {
		if group != "" {
			return fmt.Sprintf("No agents in group %s.", group)
		}
		return "No agents registered."
	}
	lines := make([]string, len(agents))
	for i, a := range agents {
		line := fmt.Sprintf("%s [%s] pane: %s", a.Name, a.Group, describe(a.Address))
		if a.Description != "" {
			line += " - " + a.Description
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// RenderGroups renders group counts.
func RenderGroups(groups []store.GroupCount) string {
	if len(groups) == 0 {
		return "No groups."
	}
	lines := make([]string, len(groups))
	for i, g := range groups {
		lines[i] = fmt.Sprintf("%s: %s", g.Name, plural(int(g.Count), "agent", "agents"))
	}
	return strings.Join(lines, "\n")
}

// RenderChannels renders the channel list.
func RenderChannels(chs []messaging.Channel) string {
	if len(chs) == 0 {
		return "No channels."
	}
	lines := make([]string, len(chs))
	for i, c := range chs {
		lines[i] = fmt.Sprintf("#%s: %s, %s", c.Name,
			plural(int(c.Members), "member", "members"),
			plural(int(c.Messages), "message", "messages"))
	}
	return strings.Join(lines, "\n")
}

// RenderHistory renders history lines, compact or detailed.
func RenderHistory(msgs []models.Message, detailed bool) string {
	return messaging.FormatHistory(msgs, detailed, "No messages.")
}
