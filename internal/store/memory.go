package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zulandar/signalbox/internal/models"
)

// Memory is an in-process Store for tests. It follows the same contract as
// Gorm, including NULL-vs-empty handling of pane addresses.
type Memory struct {
	mu       sync.Mutex
	agents   map[string]models.Agent
	messages []models.Message
	counter  uint64

	// Fail, when set, is returned by every call to simulate an
	// unreachable backend.
	Fail error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Gorm)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{agents: make(map[string]models.Agent)}
}

func (m *Memory) fail(op string) error {
	if m.Fail != nil {
		return unavailable(op, m.Fail)
	}
	return nil
}

// Put inserts a row verbatim, bypassing normalization and eviction. Tests
// use it to seed rows such as ones holding empty-string panes.
func (m *Memory) Put(a models.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.Name] = a
}

func (m *Memory) GetAgent(_ context.Context, name string) (*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get agent " + name); err != nil {
		return nil, err
	}
	a, ok := m.agents[name]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListAgents(_ context.Context, group string) ([]models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list agents"); err != nil {
		return nil, err
	}
	var out []models.Agent
	for _, a := range m.agents {
		if group == "" || a.Group == group {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GroupCounts(_ context.Context) ([]GroupCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("group counts"); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, a := range m.agents {
		counts[a.Group]++
	}
	out := make([]GroupCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GroupCount{Name: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SaveAgent(_ context.Context, agent models.Agent, evict Match) (*models.Agent, []models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("save agent " + agent.Name); err != nil {
		return nil, nil, err
	}
	agent = normalizeAgent(agent)

	var evicted []models.Agent
	if !evict.Empty() {
		for name, a := range m.agents {
			if name != agent.Name && evict.Matches(a) {
				evicted = append(evicted, a)
			}
		}
	}
	for _, e := range evicted {
		delete(m.agents, e.Name)
	}

	if prev, ok := m.agents[agent.Name]; ok {
		agent.ID = prev.ID
	}
	mine := MatchAgent(agent)
	if !mine.Empty() {
		for name, a := range m.agents {
			if name != agent.Name && mine.Matches(a) {
				return nil, nil, fmt.Errorf("store: save agent %s: %w", agent.Name, ErrCollision)
			}
		}
	}
	m.agents[agent.Name] = agent
	sort.Slice(evicted, func(i, j int) bool { return evicted[i].Name < evicted[j].Name })
	return &agent, evicted, nil
}

func (m *Memory) DeleteAgent(ctx context.Context, name string) (*models.Agent, error) {
	return m.DeleteAgentIf(ctx, name, nil)
}

func (m *Memory) DeleteAgentIf(_ context.Context, name string, cond func(models.Agent) bool) (*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete agent " + name); err != nil {
		return nil, err
	}
	a, ok := m.agents[name]
	if !ok || (cond != nil && !cond(a)) {
		return nil, nil
	}
	delete(m.agents, name)
	return &a, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("append message"); err != nil {
		return err
	}
	m.counter++
	msg.ID = m.counter
	if msg.Priority == "" {
		msg.Priority = "normal"
	}
	m.messages = append(m.messages, *msg)
	return nil
}

// newest walks the log from the end, keeping up to limit matches.
func (m *Memory) newest(limit int, keep func(models.Message) bool) []models.Message {
	var out []models.Message
	for i := len(m.messages) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if keep(m.messages[i]) {
			out = append(out, m.messages[i])
		}
	}
	return out
}

func strEq(p *string, s string) bool { return p != nil && *p == s }

func (m *Memory) ChannelMessages(_ context.Context, channel string, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("channel history " + channel); err != nil {
		return nil, err
	}
	return m.newest(limit, func(msg models.Message) bool { return strEq(msg.Channel, channel) }), nil
}

func (m *Memory) DirectMessages(_ context.Context, a, b string, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("dm history"); err != nil {
		return nil, err
	}
	return m.newest(limit, func(msg models.Message) bool {
		if msg.Type != models.MessageDM {
			return false
		}
		return (strEq(msg.FromAgent, a) && strEq(msg.ToAgent, b)) ||
			(strEq(msg.FromAgent, b) && strEq(msg.ToAgent, a))
	}), nil
}

func (m *Memory) MessagesSince(_ context.Context, since uint64, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("messages since"); err != nil {
		return nil, err
	}
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ID <= since {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *Memory) ChannelCounts(_ context.Context) ([]ChannelCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("channel counts"); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, msg := range m.messages {
		if msg.Channel != nil && *msg.Channel != "" {
			counts[*msg.Channel]++
		}
	}
	out := make([]ChannelCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, ChannelCount{Name: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) MessageTypeCounts(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("message counts"); err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, msg := range m.messages {
		out[msg.Type]++
	}
	return out, nil
}
