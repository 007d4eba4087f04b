package messaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/pane"
)

// FormatCompact renders one message as a short history line.
func FormatCompact(m models.Message) string {
	from := orDash(m.FromAgent)
	switch m.Type {
	case models.MessageChannel:
		return fmt.Sprintf("[#%s] %s: %s", pane.Value(m.Channel), from, m.Content)
	case models.MessageDM:
		return fmt.Sprintf("%s -> %s: %s", from, orDash(m.ToAgent), m.Content)
	case models.MessageLeft:
		return fmt.Sprintf("[LEFT] %s", m.Content)
	}
	return fmt.Sprintf("[%s] %s", from, m.Content)
}

// FormatDetailed renders one message with id, timestamp and type.
func FormatDetailed(m models.Message) string {
	to := orDash(m.ToAgent)
	if c := pane.Value(m.Channel); c != "" {
		to = "#" + c
	}
	line := fmt.Sprintf("#%d %s [%s] %s -> %s: %s",
		m.ID, m.Timestamp.UTC().Format(time.RFC3339), m.Type, orDash(m.FromAgent), to, m.Content)
	if m.Priority != "" && m.Priority != PriorityNormal {
		line += " (" + m.Priority + ")"
	}
	return line
}

// FormatHistory renders msgs one per line, or a placeholder when empty.
func FormatHistory(msgs []models.Message, detailed bool, empty string) string {
	if len(msgs) == 0 {
		return empty
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		if detailed {
			lines[i] = FormatDetailed(m)
		} else {
			lines[i] = FormatCompact(m)
		}
	}
	return strings.Join(lines, "\n")
}

func orDash(p *string) string {
	if v := pane.Value(p); v != "" {
		return v
	}
	return "-"
}

// MessageView is the JSON shape of a log row.
type MessageView struct {
	ID        uint64 `json:"id"`
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Content   string `json:"content"`
	Priority  string `json:"priority"`
	Timestamp string `json:"timestamp"`
}

// View converts a log row for JSON output.
func View(m models.Message) MessageView {
	return MessageView{
		ID:        m.ID,
		Type:      m.Type,
		From:      pane.Value(m.FromAgent),
		To:        pane.Value(m.ToAgent),
		Channel:   pane.Value(m.Channel),
		Content:   m.Content,
		Priority:  m.Priority,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Views converts rows for JSON output; never nil.
func Views(msgs []models.Message) []MessageView {
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = View(m)
	}
	return out
}
