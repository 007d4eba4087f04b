// Package directory owns the mapping from agent name to agent row.
//
// At most one row exists per name, and at most one row holds any given
// non-empty pane address. Registering a location held by a different name
// evicts that row; registering again under the same name updates the row in
// place and keeps its id.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/pane"
	"github.com/zulandar/signalbox/internal/store"
)

// DefaultGroup is used when a registration names no group.
const DefaultGroup = "default"

const maxNameLen = 64

// ErrInvalidPane reports a pane address of the wrong shape.
var ErrInvalidPane = errors.New("invalid pane address")

// Directory serializes registration writes in-process; the store makes
// each write atomic across processes.
type Directory struct {
	store        store.Store
	defaultGroup string

	mu    sync.Mutex
	now   func() time.Time
	newID func(name string) string
}

// Option configures a Directory.
type Option func(*Directory)

// WithDefaultGroup overrides the group assigned when none is given.
func WithDefaultGroup(g string) Option {
	return func(d *Directory) {
		if g = strings.TrimSpace(g); g != "" {
			d.defaultGroup = g
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithIDGenerator replaces the id generator, for tests.
func WithIDGenerator(gen func(name string) string) Option {
	return func(d *Directory) { d.newID = gen }
}

// New creates a Directory over s.
func New(s store.Store, opts ...Option) *Directory {
	d := &Directory{
		store:        s,
		defaultGroup: DefaultGroup,
		now:          time.Now,
		newID:        NewID,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// NewID returns "<name>-<8 hex chars>".
func NewID(name string) string {
	return name + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Registration is the input to Register. Empty pane fields mean "unknown";
// they are stored as NULL and never used to select other rows.
type Registration struct {
	Name        string
	Group       string
	Description string
	PaneID      string
	StablePane  string
}

// Result describes a completed directory write.
type Result struct {
	Agent models.Agent
	// Evicted holds rows of other names that previously held this location.
	Evicted []models.Agent
	// Existing is true when the name was already registered.
	Existing bool
}

// ValidateName rejects names that cannot key a row.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("directory: name is required")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("directory: name %q longer than %d characters", name, maxNameLen)
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("directory: name %q must not contain whitespace", name)
	}
	return nil
}

// ValidatePanes checks the shape of the addresses about to be written. A
// pane id must carry the % sigil; a stable pane must be session:window.pane.
// Empty values are absent and always pass.
func ValidatePanes(paneID, stablePane string) error {
	if p := pane.Normalize(paneID); p != "" && !pane.IsEphemeral(p) {
		return fmt.Errorf("directory: pane id %q: %w (want %%N)", p, ErrInvalidPane)
	}
	if s := pane.Normalize(stablePane); s != "" && !pane.IsStable(s) {
		return fmt.Errorf("directory: stable pane %q: %w (want session:window.pane)", s, ErrInvalidPane)
	}
	return nil
}

// Register creates or replaces the row for reg.Name.
func (d *Directory) Register(ctx context.Context, reg Registration) (*Result, error) {
	name := strings.TrimSpace(reg.Name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidatePanes(reg.PaneID, reg.StablePane); err != nil {
		return nil, err
	}
	group := strings.TrimSpace(reg.Group)
	if group == "" {
		group = d.defaultGroup
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, err := d.store.GetAgent(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("directory: register %s: %w", name, err)
	}

	agent := models.Agent{
		Name:         name,
		Group:        group,
		Description:  strings.TrimSpace(reg.Description),
		PaneID:       pane.Ptr(reg.PaneID),
		StablePane:   pane.Ptr(reg.StablePane),
		RegisteredAt: d.now().UTC(),
	}
	if prev != nil {
		agent.ID = prev.ID
	} else {
		agent.ID = d.newID(name)
	}

	saved, evicted, err := d.store.SaveAgent(ctx, agent, store.MatchAgent(agent))
	if err != nil {
		return nil, fmt.Errorf("directory: register %s: %w", name, err)
	}
	for _, e := range evicted {
		log.Printf("directory: %s took over pane of %s", name, e.Name)
	}
	return &Result{Agent: *saved, Evicted: evicted, Existing: prev != nil}, nil
}

// AssignPane completes a registration whose location was not known when
// the row was first written. It returns nil if the agent has since left.
func (d *Directory) AssignPane(ctx context.Context, name, paneID, stablePane string) (*Result, error) {
	if err := ValidatePanes(paneID, stablePane); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, err := d.store.GetAgent(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("directory: assign pane %s: %w", name, err)
	}
	if prev == nil {
		return nil, nil
	}

	agent := *prev
	agent.PaneID = pane.Ptr(paneID)
	agent.StablePane = pane.Ptr(stablePane)

	saved, evicted, err := d.store.SaveAgent(ctx, agent, store.MatchAgent(agent))
	if err != nil {
		return nil, fmt.Errorf("directory: assign pane %s: %w", name, err)
	}
	return &Result{Agent: *saved, Evicted: evicted, Existing: true}, nil
}

// Deregister removes name and returns the row as it was just before
// removal. A name with no row is not an error: (nil, nil).
func (d *Directory) Deregister(ctx context.Context, name string) (*models.Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap, err := d.store.DeleteAgent(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("directory: deregister %s: %w", name, err)
	}
	return snap, nil
}

// DeregisterAt removes name only while its resolved address is still
// address. A row that re-registered elsewhere in the meantime is kept and
// (nil, nil) is returned.
func (d *Directory) DeregisterAt(ctx context.Context, name, address string) (*models.Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = strings.TrimSpace(name)
	snap, err := d.store.DeleteAgentIf(ctx, name, func(a models.Agent) bool {
		addr, ok := Address(a)
		return ok && addr == address
	})
	if err != nil {
		return nil, fmt.Errorf("directory: deregister %s at %s: %w", name, address, err)
	}
	return snap, nil
}

// Get returns the row for name, or nil when absent or unreadable.
func (d *Directory) Get(ctx context.Context, name string) *models.Agent {
	a, err := d.store.GetAgent(ctx, strings.TrimSpace(name))
	if err != nil {
		log.Printf("directory: get %s: %v", name, err)
		return nil
	}
	return a
}

// List returns agents in group (exact match), or every agent when group
// is empty. Storage errors yield an empty list.
func (d *Directory) List(ctx context.Context, group string) []models.Agent {
	agents, err := d.store.ListAgents(ctx, strings.TrimSpace(group))
	if err != nil {
		log.Printf("directory: list %q: %v", group, err)
		return nil
	}
	return agents
}

// Names returns every registered name, sorted.
func (d *Directory) Names(ctx context.Context) []string {
	agents := d.List(ctx, "")
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = a.Name
	}
	return out
}

// GroupCounts returns distinct groups with member counts, ordered by name.
func (d *Directory) GroupCounts(ctx context.Context) []store.GroupCount {
	counts, err := d.store.GroupCounts(ctx)
	if err != nil {
		log.Printf("directory: group counts: %v", err)
		return nil
	}
	return counts
}

// Address resolves where a can be reached.
func Address(a models.Agent) (string, bool) {
	return pane.Resolve(a.PaneID, a.StablePane)
}
