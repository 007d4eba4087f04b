// Package router selects message targets from the directory, logs each
// event once and delivers to targets one at a time.
package router

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/zulandar/signalbox/internal/delivery"
	"github.com/zulandar/signalbox/internal/directory"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/models"
)

// AllGroups as a broadcast group ignores grouping.
const AllGroups = "all"

// Outcome is the result of delivering to one target.
type Outcome struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Err     error  `json:"-"`
}

// OK reports whether the delivery succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("✗ %s: %v", o.Name, o.Err)
	}
	return "✓ " + o.Name
}

// Report aggregates one broadcast or channel send.
type Report struct {
	Message  *models.Message
	Scope    string
	Outcomes []Outcome
}

// Delivered counts successful outcomes.
func (r *Report) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Stats counts delivery attempts since the Router was created.
type Stats struct {
	Attempts int64 `json:"attempts"`
	Failures int64 `json:"failures"`
}

// Router fans messages out to directory members.
type Router struct {
	dir     *directory.Directory
	log     *messaging.Log
	deliver delivery.Deliverer
	notify  messaging.NotifyConfig

	attempts atomic.Int64
	failures atomic.Int64
}

// New creates a Router.
func New(dir *directory.Directory, l *messaging.Log, d delivery.Deliverer) *Router {
	return &Router{dir: dir, log: l, deliver: d}
}

// SetNotify enables desktop notification for urgent broadcasts.
func (r *Router) SetNotify(cfg messaging.NotifyConfig) {
	r.notify = cfg
}

// Stats returns delivery counters.
func (r *Router) Stats() Stats {
	return Stats{Attempts: r.attempts.Load(), Failures: r.failures.Load()}
}

type target struct {
	name    string
	address string
}

// sender loads the calling agent and requires a resolvable address.
func (r *Router) sender(ctx context.Context, name string) (*models.Agent, error) {
	name = strings.TrimSpace(name)
	a := r.dir.Get(ctx, name)
	if a == nil {
		return nil, &NotRegisteredError{Name: name}
	}
	if _, ok := directory.Address(*a); !ok {
		return nil, &NotRegisteredError{Name: name, Incomplete: true}
	}
	return a, nil
}

// targets lists addressable members of group (every group when empty),
// excluding exclude.
func (r *Router) targets(ctx context.Context, group, exclude string) []target {
	var out []target
	for _, a := range r.dir.List(ctx, group) {
		if a.Name == exclude {
			continue
		}
		addr, ok := directory.Address(a)
		if !ok {
			continue
		}
		out = append(out, target{name: a.Name, address: addr})
	}
	return out
}

// fanOut delivers text to each target in order, waiting for each attempt
// before starting the next. Failures are recorded and do not stop the loop.
func (r *Router) fanOut(ctx context.Context, targets []target, text string) []Outcome {
	outcomes := make([]Outcome, 0, len(targets))
	for _, t := range targets {
		outcomes = append(outcomes, r.deliverOne(ctx, t, text))
	}
	return outcomes
}

func (r *Router) deliverOne(ctx context.Context, t target, text string) Outcome {
	r.attempts.Add(1)
	err := r.deliver.Deliver(ctx, t.address, text)
	if err != nil {
		r.failures.Add(1)
		log.Printf("router: deliver to %s (%s): %v", t.name, t.address, err)
	}
	return Outcome{Name: t.name, Address: t.address, Err: err}
}

// Broadcast delivers message to every other addressable agent in group.
// An empty group means the sender's own group; AllGroups means every group.
func (r *Router) Broadcast(ctx context.Context, from, message, priority, group string) (*Report, error) {
	priority, err := messaging.NormalizePriority(priority)
	if err != nil {
		return nil, err
	}
	sender, err := r.sender(ctx, from)
	if err != nil {
		return nil, err
	}

	scope := strings.TrimSpace(group)
	if scope == "" {
		scope = sender.Group
	}
	filter := scope
	if strings.EqualFold(scope, AllGroups) {
		scope, filter = AllGroups, ""
	}

	targets := r.targets(ctx, filter, sender.Name)
	if len(targets) == 0 {
		if filter == "" || len(r.targets(ctx, "", sender.Name)) == 0 {
			return nil, &NoTargetsError{}
		}
		return nil, &NoTargetsError{Group: scope, Available: r.dir.GroupCounts(ctx)}
	}

	msg, err := r.log.Append(ctx, messaging.Entry{
		Type:     models.MessageBroadcast,
		From:     sender.Name,
		Content:  message,
		Priority: priority,
	})
	if err != nil {
		return nil, fmt.Errorf("router: broadcast: %w", err)
	}
	messaging.Notify(msg, r.notify)

	return &Report{
		Message:  msg,
		Scope:    scope,
		Outcomes: r.fanOut(ctx, targets, FormatBroadcast(sender.Name, message)),
	}, nil
}

// DirectMessage delivers message to one named agent. A failed delivery is
// reported in the Outcome, not as an error.
func (r *Router) DirectMessage(ctx context.Context, from, to, message string) (*Outcome, error) {
	sender, err := r.sender(ctx, from)
	if err != nil {
		return nil, err
	}
	to = strings.TrimSpace(to)
	recipient := r.dir.Get(ctx, to)
	if recipient == nil {
		return nil, &TargetNotFoundError{Name: to, Known: r.dir.Names(ctx)}
	}
	addr, ok := directory.Address(*recipient)
	if !ok {
		return nil, &NoAddressError{Name: to}
	}

	if _, err := r.log.Append(ctx, messaging.Entry{
		Type:    models.MessageDM,
		From:    sender.Name,
		To:      recipient.Name,
		Content: message,
	}); err != nil {
		return nil, fmt.Errorf("router: direct message: %w", err)
	}

	out := r.deliverOne(ctx, target{name: recipient.Name, address: addr}, FormatDM(sender.Name, message))
	return &out, nil
}

// ChannelSend delivers message to every other addressable member of the
// group named channel. Members without a pane are skipped.
func (r *Router) ChannelSend(ctx context.Context, from, channel, message string) (*Report, error) {
	sender, err := r.sender(ctx, from)
	if err != nil {
		return nil, err
	}
	channel = strings.TrimPrefix(strings.TrimSpace(channel), "#")
	if channel == "" {
		return nil, fmt.Errorf("router: channel is required")
	}

	msg, err := r.log.Append(ctx, messaging.Entry{
		Type:    models.MessageChannel,
		From:    sender.Name,
		Channel: channel,
		Content: message,
	})
	if err != nil {
		return nil, fmt.Errorf("router: channel send: %w", err)
	}

	targets := r.targets(ctx, channel, sender.Name)
	return &Report{
		Message:  msg,
		Scope:    channel,
		Outcomes: r.fanOut(ctx, targets, FormatChannel(channel, sender.Name, message)),
	}, nil
}

// AnnounceDeparture logs a LEFT event for gone and tells the remaining
// members of its group. gone is the row as it was before removal.
func (r *Router) AnnounceDeparture(ctx context.Context, gone models.Agent) *Report {
	addr, _ := directory.Address(gone)
	text := FormatLeft(gone.Name, gone.Group, addr)

	msg, err := r.log.Append(ctx, messaging.Entry{
		Type:    models.MessageLeft,
		From:    gone.Name,
		Channel: gone.Group,
		Content: strings.TrimPrefix(text, "[LEFT] "),
	})
	if err != nil {
		log.Printf("router: log departure of %s: %v", gone.Name, err)
	}

	return &Report{
		Message:  msg,
		Scope:    gone.Group,
		Outcomes: r.fanOut(ctx, r.targets(ctx, gone.Group, gone.Name), text),
	}
}
