// Package service exposes the caller-facing operations on top of the
// directory, the router and the message log.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/signalbox/internal/directory"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/router"
	"github.com/zulandar/signalbox/internal/store"
	"github.com/zulandar/signalbox/internal/tmux"
)

// Locator finds the pane of the calling process.
type Locator func(ctx context.Context) (tmux.Location, error)

// TmuxLocator locates $TMUX_PANE with t.
func TmuxLocator(t tmux.Tmux) Locator {
	return func(context.Context) (tmux.Location, error) {
		return tmux.LocateCurrent(t)
	}
}

// Service is the operation surface shared by the MCP server, the CLI and
// the dashboard.
type Service struct {
	Dir    *directory.Directory
	Log    *messaging.Log
	Router *router.Router

	locate  Locator
	pending sync.WaitGroup
}

// New wires a Service. locate may be nil, in which case registrations
// without a pane stay incomplete until AssignPane is called.
func New(dir *directory.Directory, l *messaging.Log, r *router.Router, locate Locator) *Service {
	return &Service{Dir: dir, Log: l, Router: r, locate: locate}
}

// Wait blocks until background pane assignments have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// RegisterRequest is the input to Register. PaneID and StablePane are
// optional; when both are empty the pane is located in the background.
type RegisterRequest struct {
	Name        string
	Description string
	Group       string
	PaneID      string
	StablePane  string
}

// RegisterResult is returned to the registering agent.
type RegisterResult struct {
	AgentID string   `json:"agent_id"`
	Group   string   `json:"group"`
	Peers   []string `json:"peers"`
	Address string   `json:"address,omitempty"`
	Pending bool     `json:"pending"`
	Evicted []string `json:"evicted,omitempty"`
}

// Register writes the agent row. Without pane information the row is
// written first and the pane is filled in asynchronously.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	res, err := s.Dir.Register(ctx, directory.Registration{
		Name:        req.Name,
		Group:       req.Group,
		Description: req.Description,
		PaneID:      req.PaneID,
		StablePane:  req.StablePane,
	})
	if err != nil {
		return nil, err
	}

	out := &RegisterResult{
		AgentID: res.Agent.ID,
		Group:   res.Agent.Group,
		Peers:   []string{},
	}
	for _, e := range res.Evicted {
		out.Evicted = append(out.Evicted, e.Name)
	}
	for _, a := range s.Dir.List(ctx, res.Agent.Group) {
		if a.Name != res.Agent.Name {
			out.Peers = append(out.Peers, a.Name)
		}
	}

	if addr, ok := directory.Address(res.Agent); ok {
		out.Address = addr
		return out, nil
	}
	if s.locate != nil {
		out.Pending = true
		s.pending.Add(1)
		go s.assign(context.WithoutCancel(ctx), res.Agent.Name)
	}
	return out, nil
}

// assign is phase two of a registration.
func (s *Service) assign(ctx context.Context, name string) {
	defer s.pending.Done()
	loc, err := s.locate(ctx)
	if err != nil {
		log.Printf("service: locate pane for %s: %v", name, err)
		return
	}
	if _, err := s.AssignPane(ctx, name, loc.PaneID, loc.Stable); err != nil {
		log.Printf("service: %v", err)
	}
}

// AssignPane records the pane of an already registered agent.
func (s *Service) AssignPane(ctx context.Context, name, paneID, stablePane string) (*models.Agent, error) {
	res, err := s.Dir.AssignPane(ctx, name, paneID, stablePane)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	for _, e := range res.Evicted {
		log.Printf("service: %s took over pane of %s", name, e.Name)
	}
	return &res.Agent, nil
}

// DeregisterResult describes a departure.
type DeregisterResult struct {
	Name    string
	Agent   *models.Agent
	Notices *router.Report
}

// Deregister removes name and announces the departure to its group. A
// name with no row succeeds with a nil Agent.
func (s *Service) Deregister(ctx context.Context, name string) (*DeregisterResult, error) {
	name = strings.TrimSpace(name)
	gone, err := s.Dir.Deregister(ctx, name)
	if err != nil {
		return nil, err
	}
	out := &DeregisterResult{Name: name, Agent: gone}
	if gone != nil {
		out.Notices = s.Router.AnnounceDeparture(ctx, *gone)
	}
	return out, nil
}

// DeregisterAt is Deregister guarded on the agent still being reachable at
// address. Used by the sweep so that an agent that moved to a live pane
// between listing and removal is not dropped.
func (s *Service) DeregisterAt(ctx context.Context, name, address string) (*DeregisterResult, error) {
	name = strings.TrimSpace(name)
	gone, err := s.Dir.DeregisterAt(ctx, name, address)
	if err != nil {
		return nil, err
	}
	out := &DeregisterResult{Name: name, Agent: gone}
	if gone != nil {
		out.Notices = s.Router.AnnounceDeparture(ctx, *gone)
	}
	return out, nil
}

// Broadcast sends message to the sender's group, a named group, or every
// group when group is "all".
func (s *Service) Broadcast(ctx context.Context, name, message, priority, group string) (*router.Report, error) {
	return s.Router.Broadcast(ctx, name, message, priority, group)
}

// DirectMessage sends message to one agent.
func (s *Service) DirectMessage(ctx context.Context, name, to, message string) (*router.Outcome, error) {
	return s.Router.DirectMessage(ctx, name, to, message)
}

// ChannelSend sends message to the members of channel.
func (s *Service) ChannelSend(ctx context.Context, name, channel, message string) (*router.Report, error) {
	return s.Router.ChannelSend(ctx, name, channel, message)
}

// AgentView is the public shape of a directory row.
type AgentView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Group        string `json:"group"`
	Description  string `json:"description,omitempty"`
	PaneID       string `json:"pane_id,omitempty"`
	StablePane   string `json:"stable_pane,omitempty"`
	Address      string `json:"address,omitempty"`
	RegisteredAt string `json:"registered_at"`
}

// View converts a row for output.
func View(a models.Agent) AgentView {
	addr, _ := directory.Address(a)
	v := AgentView{
		ID:           a.ID,
		Name:         a.Name,
		Group:        a.Group,
		Description:  a.Description,
		Address:      addr,
		RegisteredAt: a.RegisteredAt.UTC().Format(time.RFC3339),
	}
	if a.PaneID != nil {
		v.PaneID = *a.PaneID
	}
	if a.StablePane != nil {
		v.StablePane = *a.StablePane
	}
	return v
}

// Discover lists agents, optionally restricted to one group.
func (s *Service) Discover(ctx context.Context, group string) []AgentView {
	agents := s.Dir.List(ctx, group)
	out := make([]AgentView, len(agents))
	for i, a := range agents {
		out[i] = View(a)
	}
	return out
}

// Groups lists groups with member counts.
func (s *Service) Groups(ctx context.Context) []store.GroupCount {
	return s.Dir.GroupCounts(ctx)
}

// ChannelHistory returns recent channel messages, oldest first.
func (s *Service) ChannelHistory(ctx context.Context, channel string, limit int) []models.Message {
	return s.Log.ChannelHistory(ctx, strings.TrimPrefix(strings.TrimSpace(channel), "#"), limit)
}

// DMHistory returns recent direct messages between name and with.
func (s *Service) DMHistory(ctx context.Context, name, with string, limit int) []models.Message {
	return s.Log.DMHistory(ctx, name, with, limit)
}

// ChannelList returns every known channel.
func (s *Service) ChannelList(ctx context.Context) []messaging.Channel {
	return s.Log.Channels(ctx, s.Dir.GroupCounts(ctx))
}

// MessagesSince pages through the log.
func (s *Service) MessagesSince(ctx context.Context, since uint64, limit int) messaging.Page {
	return s.Log.Since(ctx, since, limit)
}

// Metrics is a point-in-time summary.
type Metrics struct {
	Agents     int              `json:"agents"`
	Groups     int              `json:"groups"`
	Messages   map[string]int64 `json:"messages"`
	Deliveries router.Stats     `json:"deliveries"`
}

// Metrics counts agents, groups, logged messages per type and delivery
// attempts since start.
func (s *Service) Metrics(ctx context.Context) Metrics {
	groups := s.Dir.GroupCounts(ctx)
	agents := 0
	for _, g := range groups {
		agents += int(g.Count)
	}
	msgs := s.Log.TypeCounts(ctx)
	for _, t := range []string{models.MessageBroadcast, models.MessageDM, models.MessageChannel, models.MessageLeft} {
		if _, ok := msgs[t]; !ok {
			msgs[t] = 0
		}
	}
	return Metrics{
		Agents:     agents,
		Groups:     len(groups),
		Messages:   msgs,
		Deliveries: s.Router.Stats(),
	}
}

// describe names a pane for humans.
func describe(addr string) string {
	if addr == "" {
		return "none"
	}
	return addr
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
