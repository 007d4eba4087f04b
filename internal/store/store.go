// Package store is the storage collaborator behind the directory and the
// message log: two logical tables (agents, messages) plus a monotonic
// counter, with a gorm-backed implementation and an in-memory fake.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/pane"
)

var (
	// ErrUnavailable wraps any failure to reach or execute against storage.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrCollision reports that a write would leave two rows holding the
	// same non-empty pane address.
	ErrCollision = errors.New("pane address already held by another agent")
)

// GroupCount is one directory group and its member count.
type GroupCount struct {
	Name  string `json:"group"`
	Count int64  `json:"count"`
}

// ChannelCount is one channel seen in the log and its message count.
type ChannelCount struct {
	Name  string `json:"channel"`
	Count int64  `json:"count"`
}

// Store is the query surface used by the directory and message log.
// Agent lookups return (nil, nil) when no row exists.
type Store interface {
	GetAgent(ctx context.Context, name string) (*models.Agent, error)
	// ListAgents returns agents ordered by name; an empty group means all.
	ListAgents(ctx context.Context, group string) ([]models.Agent, error)
	GroupCounts(ctx context.Context) ([]GroupCount, error)
	// SaveAgent atomically removes rows of other names that hold any
	// address in evict, then inserts or replaces the row keyed by
	// agent.Name. An existing row keeps its ID. The removed rows and the
	// stored row are returned.
	SaveAgent(ctx context.Context, agent models.Agent, evict Match) (*models.Agent, []models.Agent, error)
	// DeleteAgent removes the row for name and returns it as it was
	// immediately before removal, or nil if there was none.
	DeleteAgent(ctx context.Context, name string) (*models.Agent, error)
	// DeleteAgentIf is DeleteAgent that only removes the row when cond
	// accepts it as read inside the same atomic step. A row that changed
	// addresses between that read and the delete is kept. It returns nil
	// when nothing was removed.
	DeleteAgentIf(ctx context.Context, name string, cond func(models.Agent) bool) (*models.Agent, error)

	// AppendMessage assigns msg.ID from the message counter and stores it.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ChannelMessages and DirectMessages return newest first.
	ChannelMessages(ctx context.Context, channel string, limit int) ([]models.Message, error)
	DirectMessages(ctx context.Context, a, b string, limit int) ([]models.Message, error)
	// MessagesSince returns messages with ID > since, oldest first.
	MessagesSince(ctx context.Context, since uint64, limit int) ([]models.Message, error)
	ChannelCounts(ctx context.Context) ([]ChannelCount, error)
	MessageTypeCounts(ctx context.Context) (map[string]int64, error)
}

// Match selects directory rows occupying a pane address. Only non-empty
// fields take part: an empty field is dropped from the predicate entirely,
// never compared, so "" can never act as a wildcard against other rows
// whose value is also "" or NULL.
type Match struct {
	PaneID     string
	StablePane string
}

// MatchAgent builds the eviction match for the addresses agent is claiming.
func MatchAgent(a models.Agent) Match {
	return Match{PaneID: pane.Value(a.PaneID), StablePane: pane.Value(a.StablePane)}
}

func (m Match) normalized() Match {
	return Match{PaneID: pane.Normalize(m.PaneID), StablePane: pane.Normalize(m.StablePane)}
}

// Empty reports whether the match has no usable clause and so selects nothing.
func (m Match) Empty() bool {
	n := m.normalized()
	return n.PaneID == "" && n.StablePane == ""
}

// Where renders the predicate as a parenthesized OR of the non-empty
// clauses with bind arguments. It returns "" when the match is empty;
// callers must then skip the query rather than run it unfiltered.
func (m Match) Where() (string, []any) {
	n := m.normalized()
	var clauses []string
	var args []any
	if n.PaneID != "" {
		clauses = append(clauses, "pane_id = ?")
		args = append(args, n.PaneID)
	}
	if n.StablePane != "" {
		clauses = append(clauses, "stable_pane = ?")
		args = append(args, n.StablePane)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

// Matches applies the same rule to an in-memory row.
func (m Match) Matches(a models.Agent) bool {
	n := m.normalized()
	if n.PaneID != "" && pane.Value(a.PaneID) == n.PaneID {
		return true
	}
	if n.StablePane != "" && pane.Value(a.StablePane) == n.StablePane {
		return true
	}
	return false
}

// normalizeAgent stores absent addresses as NULL.
func normalizeAgent(a models.Agent) models.Agent {
	a.PaneID = pane.Ptr(pane.Value(a.PaneID))
	a.StablePane = pane.Ptr(pane.Value(a.StablePane))
	return a
}
