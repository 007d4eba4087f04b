// Package messaging is the append-only message log and its history queries.
package messaging

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/pane"
	"github.com/zulandar/signalbox/internal/store"
)

// Priorities accepted on a message.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// History and since-query limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
	DefaultSinceLimit   = 50
)

// Entry describes one event to append. Empty From/To/Channel are stored
// as NULL.
type Entry struct {
	Type     string
	From     string
	To       string
	Channel  string
	Content  string
	Priority string
}

// Log appends to and reads from the shared message table.
type Log struct {
	store store.Store
	now   func() time.Time
}

// New creates a Log over s.
func New(s store.Store) *Log {
	return &Log{store: s, now: time.Now}
}

// NormalizePriority returns p lowercased, defaulting to normal. Unknown
// priorities are an error.
func NormalizePriority(p string) (string, error) {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("messaging: invalid priority %q (want normal, high or urgent)", p)
}

// Append assigns the next id and stores e.
func (l *Log) Append(ctx context.Context, e Entry) (*models.Message, error) {
	switch e.Type {
	case models.MessageBroadcast, models.MessageDM, models.MessageChannel, models.MessageLeft:
	default:
		return nil, fmt.Errorf("messaging: unknown message type %q", e.Type)
	}
	priority, err := NormalizePriority(e.Priority)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		Type:      e.Type,
		FromAgent: pane.Ptr(e.From),
		ToAgent:   pane.Ptr(e.To),
		Channel:   pane.Ptr(e.Channel),
		Content:   e.Content,
		Priority:  priority,
		Timestamp: l.now().UTC(),
	}
	if err := l.store.AppendMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("messaging: append %s: %w", e.Type, err)
	}
	return &msg, nil
}

// ClampLimit applies def to non-positive limits and caps at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// chronological reverses a newest-first slice in place.
func chronological(msgs []models.Message) []models.Message {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// ChannelHistory returns the most recent limit messages on channel,
// oldest first.
func (l *Log) ChannelHistory(ctx context.Context, channel string, limit int) []models.Message {
	limit = ClampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit)
	msgs, err := l.store.ChannelMessages(ctx, strings.TrimSpace(channel), limit)
	if err != nil {
		log.Printf("messaging: channel history %s: %v", channel, err)
		return nil
	}
	return chronological(msgs)
}

// DMHistory returns the most recent limit direct messages between a and b
// in either direction, oldest first.
func (l *Log) DMHistory(ctx context.Context, a, b string, limit int) []models.Message {
	limit = ClampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit)
	msgs, err := l.store.DirectMessages(ctx, strings.TrimSpace(a), strings.TrimSpace(b), limit)
	if err != nil {
		log.Printf("messaging: dm history %s/%s: %v", a, b, err)
		return nil
	}
	return chronological(msgs)
}

// Page is one window of the log in ascending id order.
type Page struct {
	Messages []models.Message `json:"messages"`
	LastID   uint64           `json:"last_id"`
}

// Since returns messages with id greater than since. LastID is the id of
// the last returned message, or since when nothing is new.
func (l *Log) Since(ctx context.Context, since uint64, limit int) Page {
	limit = ClampLimit(limit, DefaultSinceLimit, MaxHistoryLimit)
	page := Page{Messages: []models.Message{}, LastID: since}
	msgs, err := l.store.MessagesSince(ctx, since, limit)
	if err != nil {
		log.Printf("messaging: since %d: %v", since, err)
		return page
	}
	if len(msgs) > 0 {
		page.Messages = msgs
		page.LastID = msgs[len(msgs)-1].ID
	}
	return page
}

// Channel summarizes one channel name.
type Channel struct {
	Name     string `json:"name"`
	Members  int64  `json:"members"`
	Messages int64  `json:"messages"`
}

// Channels merges directory groups with channels seen in the log.
func (l *Log) Channels(ctx context.Context, groups []store.GroupCount) []Channel {
	byName := make(map[string]*Channel)
	for _, g := range groups {
		byName[g.Name] = &Channel{Name: g.Name, Members: g.Count}
	}
	counts, err := l.store.ChannelCounts(ctx)
	if err != nil {
		log.Printf("messaging: channel counts: %v", err)
	}
	for _, c := range counts {
		ch, ok := byName[c.Name]
		if !ok {
			ch = &Channel{Name: c.Name}
			byName[c.Name] = ch
		}
		ch.Messages = c.Count
	}

	out := make([]Channel, 0, len(byName))
	for _, ch := range byName {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TypeCounts returns the number of logged messages per type.
func (l *Log) TypeCounts(ctx context.Context) map[string]int64 {
	counts, err := l.store.MessageTypeCounts(ctx)
	if err != nil {
		log.Printf("messaging: type counts: %v", err)
		return map[string]int64{}
	}
	return counts
}
