package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/delivery"
	"github.com/zulandar/signalbox/internal/directory"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
	"github.com/zulandar/signalbox/internal/tmux"
)

type fixture struct {
	mem *store.Memory
	dir *directory.Directory
	log *messaging.Log
	rec *delivery.Recorder
	r   *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	dir := directory.New(mem)
	l := messaging.New(mem)
	rec := delivery.NewRecorder()
	return &fixture{mem: mem, dir: dir, log: l, rec: rec, r: New(dir, l, rec)}
}

func (f *fixture) register(t *testing.T, name, group, paneID, stable string) {
	t.Helper()
	_, err := f.dir.Register(context.Background(), directory.Registration{
		Name: name, Group: group, PaneID: paneID, StablePane: stable,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func (f *fixture) logCount(t *testing.T) int {
	t.Helper()
	return len(f.log.Since(context.Background(), 0, 200).Messages)
}

// --- Formatting ---

func TestFormats(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatBroadcast("alice", "hi"), "[alice] hi"},
		{FormatDM("alice", "hi"), "[DM from alice] hi"},
		{FormatChannel("research", "alice", "hi"), "[#research] alice: hi"},
		{FormatLeft("bob", "research", "task:1.2"), "[LEFT] bob has left (group: research, pane: task:1.2)"},
		{FormatLeft("bob", "research", ""), "[LEFT] bob has left (group: research, pane: none)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	if got := (Outcome{Name: "bob"}).String(); got != "✓ bob" {
		t.Errorf("success = %q", got)
	}
	if got := (Outcome{Name: "bob", Err: errors.New("pane gone")}).String(); got != "✗ bob: pane gone" {
		t.Errorf("failure = %q", got)
	}
}

// --- Broadcast ---

func TestBroadcast_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "research", "%1", "task:1.1")
	f.register(t, "bob", "research", "%2", "task:1.2")

	rep, err := f.r.Broadcast(ctx, "alice", "hi", "", "")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].Name != "bob" || !rep.Outcomes[0].OK() {
		t.Fatalf("Outcomes = %+v, want [✓ bob]", rep.Outcomes)
	}
	if got := f.rec.Texts("task:1.2"); len(got) != 1 || got[0] != "[alice] hi" {
		t.Errorf("bob received %v, want [[alice] hi]", got)
	}
	if got := f.rec.Texts("task:1.1"); len(got) != 0 {
		t.Errorf("alice received her own broadcast: %v", got)
	}

	if _, err := f.dir.Deregister(ctx, "alice"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	_, err = f.r.Broadcast(ctx, "bob", "anyone?", "", "")
	var nt *NoTargetsError
	if !errors.As(err, &nt) {
		t.Fatalf("error = %v, want NoTargetsError", err)
	}
	if err.Error() != "no other agents online" {
		t.Errorf("error = %q, want %q", err.Error(), "no other agents online")
	}
}

func TestBroadcast_SenderNeverTargeted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "research", "%1", "")
	f.register(t, "bob", "research", "%2", "")
	f.register(t, "carol", "ops", "%3", "")

	for _, group := range []string{"", "research", "ops", "all", "ALL"} {
		rep, err := f.r.Broadcast(ctx, "alice", "x", "", group)
		if err != nil {
			t.Fatalf("Broadcast(%q): %v", group, err)
		}
		for _, o := range rep.Outcomes {
			if o.Name == "alice" {
				t.Errorf("Broadcast(%q) targeted the sender", group)
			}
		}
	}
}

func TestBroadcast_AllIgnoresGrouping(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "research", "%1", "")
	f.register(t, "bob", "research", "%2", "")
	f.register(t, "carol", "ops", "%3", "")

	rep, err := f.r.Broadcast(context.Background(), "alice", "x", "", "all")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(rep.Outcomes) != 2 || rep.Scope != AllGroups {
		t.Errorf("Outcomes = %+v scope %q, want bob and carol in all", rep.Outcomes, rep.Scope)
	}
}

func TestBroadcast_EmptyGroupListsAvailable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "research", "%1", "")
	f.register(t, "carol", "ops", "%3", "")

	_, err := f.r.Broadcast(context.Background(), "alice", "x", "", "research")
	var nt *NoTargetsError
	if !errors.As(err, &nt) {
		t.Fatalf("error = %v, want NoTargetsError", err)
	}
	if nt.Group != "research" || len(nt.Available) != 2 {
		t.Errorf("NoTargetsError = %+v", nt)
	}
	if !strings.Contains(err.Error(), "ops (1)") {
		t.Errorf("error = %q, want available groups listed", err.Error())
	}
	if f.logCount(t) != 0 {
		t.Error("message logged for a broadcast with no targets")
	}
}

func TestBroadcast_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "b1", "g", "%2", "")
	f.register(t, "b2", "g", "%3", "")
	f.register(t, "b3", "g", "%4", "")
	f.rec.Fail["%3"] = errors.New("pane gone")

	rep, err := f.r.Broadcast(context.Background(), "alice", "hi", "", "")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	var lines []string
	for _, o := range rep.Outcomes {
		lines = append(lines, o.String())
	}
	want := "✓ b1|✗ b2: pane gone|✓ b3"
	if got := strings.Join(lines, "|"); got != want {
		t.Errorf("outcomes = %q, want %q", got, want)
	}
	if rep.Delivered() != 2 {
		t.Errorf("Delivered = %d, want 2", rep.Delivered())
	}
	if s := f.r.Stats(); s.Attempts != 3 || s.Failures != 1 {
		t.Errorf("Stats = %+v, want 3 attempts 1 failure", s)
	}
}

func TestBroadcast_SequentialDelivery(t *testing.T) {
	f := newFixture(t)
	f.rec.Delay = 20 * time.Millisecond
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "bob", "g", "%2", "")
	f.register(t, "carol", "g", "%3", "")

	if _, err := f.r.Broadcast(context.Background(), "alice", "hi", "", ""); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	want := []string{"start %2", "end %2", "start %3", "end %3"}
	if got := f.rec.Events(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Events = %v, want %v", got, want)
	}
}

// slowTmux keeps every send-keys running for hold even after its context
// expires, and records when each one starts and ends.
type slowTmux struct {
	mu     sync.Mutex
	hold   time.Duration
	events []string
}

func (s *slowTmux) record(e string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *slowTmux) Locate(id string) (tmux.Location, error) { return tmux.Location{PaneID: id}, nil }
func (s *slowTmux) ListAllPanes() ([]tmux.Location, error)  { return nil, nil }
func (s *slowTmux) SendKeys(_ context.Context, target, _ string) error {
	s.record("start " + target)
	time.Sleep(s.hold)
	s.record("end " + target)
	return nil
}

func TestBroadcast_TimedOutDeliveryFinishesBeforeNext(t *testing.T) {
	mem := store.NewMemory()
	dir := directory.New(mem)
	l := messaging.New(mem)
	st := &slowTmux{hold: 100 * time.Millisecond}
	r := New(dir, l, delivery.TmuxKeys{Tmux: st, Timeout: 20 * time.Millisecond})
	ctx := context.Background()
	for _, reg := range []directory.Registration{
		{Name: "alice", Group: "g", PaneID: "%1"},
		{Name: "bob", Group: "g", PaneID: "%2"},
		{Name: "carol", Group: "g", PaneID: "%3"},
	} {
		if _, err := dir.Register(ctx, reg); err != nil {
			t.Fatalf("register %s: %v", reg.Name, err)
		}
	}

	rep, err := r.Broadcast(ctx, "alice", "hi", "", "")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if rep.Delivered() != 0 {
		t.Errorf("Delivered = %d, want 0 (both timed out)", rep.Delivered())
	}
	st.mu.Lock()
	got := strings.Join(st.events, ",")
	st.mu.Unlock()
	if want := "start %2,end %2,start %3,end %3"; got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestBroadcast_LogsOnceWithPriority(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "bob", "g", "%2", "")
	f.register(t, "carol", "g", "%3", "")

	rep, err := f.r.Broadcast(context.Background(), "alice", "hi", "high", "")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if f.logCount(t) != 1 {
		t.Errorf("log entries = %d, want 1", f.logCount(t))
	}
	if rep.Message.Priority != "high" || rep.Message.Type != models.MessageBroadcast {
		t.Errorf("logged message = %+v", rep.Message)
	}
}

func TestBroadcast_InvalidPriority(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "bob", "g", "%2", "")
	if _, err := f.r.Broadcast(context.Background(), "alice", "hi", "loud", ""); err == nil {
		t.Fatal("expected error for invalid priority")
	}
	if f.logCount(t) != 0 || len(f.rec.Events()) != 0 {
		t.Error("invalid priority still logged or delivered")
	}
}

func TestBroadcast_SkipsAgentsWithoutPane(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "bob", "g", "%2", "")
	f.register(t, "ghost", "g", "", "")

	rep, err := f.r.Broadcast(context.Background(), "alice", "hi", "", "")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].Name != "bob" {
		t.Errorf("Outcomes = %+v, want bob only", rep.Outcomes)
	}
}

func TestBroadcast_SenderNotRegistered(t *testing.T) {
	f := newFixture(t)
	f.register(t, "pending", "g", "", "")

	_, err := f.r.Broadcast(context.Background(), "nobody", "hi", "", "")
	var nr *NotRegisteredError
	if !errors.As(err, &nr) || nr.Incomplete {
		t.Errorf("error = %v, want NotRegistered", err)
	}

	_, err = f.r.Broadcast(context.Background(), "pending", "hi", "", "")
	if !errors.As(err, &nr) || !nr.Incomplete {
		t.Errorf("error = %v, want incomplete NotRegistered", err)
	}
}

// --- DirectMessage ---

func TestDirectMessage(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "task:1.1")
	f.register(t, "bob", "other", "%2", "task:1.2")

	out, err := f.r.DirectMessage(context.Background(), "alice", "bob", "psst")
	if err != nil {
		t.Fatalf("DirectMessage: %v", err)
	}
	if !out.OK() || out.Address != "task:1.2" {
		t.Errorf("Outcome = %+v", out)
	}
	if got := f.rec.Texts("task:1.2"); len(got) != 1 || got[0] != "[DM from alice] psst" {
		t.Errorf("bob received %v", got)
	}
	if f.logCount(t) != 1 {
		t.Errorf("log entries = %d, want 1", f.logCount(t))
	}
	hist := f.log.DMHistory(context.Background(), "bob", "alice", 0)
	if len(hist) != 1 || hist[0].Content != "psst" {
		t.Errorf("DMHistory = %+v", hist)
	}
}

func TestDirectMessage_TargetNotFound(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "bob", "g", "%2", "")

	_, err := f.r.DirectMessage(context.Background(), "alice", "zed", "hi")
	var tnf *TargetNotFoundError
	if !errors.As(err, &tnf) {
		t.Fatalf("error = %v, want TargetNotFound", err)
	}
	if strings.Join(tnf.Known, ",") != "alice,bob" {
		t.Errorf("Known = %v, want [alice bob]", tnf.Known)
	}
	if f.logCount(t) != 0 {
		t.Error("message logged for missing target")
	}
}

func TestDirectMessage_NoAddress(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "bob", "g", "", "")

	_, err := f.r.DirectMessage(context.Background(), "alice", "bob", "hi")
	var na *NoAddressError
	if !errors.As(err, &na) {
		t.Fatalf("error = %v, want NoAddress", err)
	}
}

func TestDirectMessage_DeliveryFailureIsOutcome(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	f.register(t, "bob", "g", "%2", "")
	f.rec.Fail["%2"] = errors.New("exit status 1")

	out, err := f.r.DirectMessage(context.Background(), "alice", "bob", "hi")
	if err != nil {
		t.Fatalf("DirectMessage: %v", err)
	}
	if out.OK() {
		t.Error("Outcome OK for failed delivery")
	}
	if len(f.rec.Events()) != 2 {
		t.Errorf("Events = %v, want exactly one attempt", f.rec.Events())
	}
}

// --- ChannelSend ---

func TestChannelSend(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "research", "%1", "")
	f.register(t, "bob", "research", "%2", "")
	f.register(t, "dora", "research", "", "")
	f.register(t, "carol", "ops", "%3", "")
	f.rec.Fail["%2"] = errors.New("gone")

	rep, err := f.r.ChannelSend(context.Background(), "alice", "#research", "sync")
	if err != nil {
		t.Fatalf("ChannelSend: %v", err)
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].Name != "bob" {
		t.Errorf("Outcomes = %+v, want attempt to bob only", rep.Outcomes)
	}
	if rep.Scope != "research" {
		t.Errorf("Scope = %q, want research", rep.Scope)
	}
	hist := f.log.ChannelHistory(context.Background(), "research", 0)
	if len(hist) != 1 || messaging.FormatCompact(hist[0]) != "[#research] alice: sync" {
		t.Errorf("ChannelHistory = %+v", hist)
	}
}

func TestChannelSend_RequiresChannel(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "g", "%1", "")
	if _, err := f.r.ChannelSend(context.Background(), "alice", " ", "x"); err == nil {
		t.Fatal("expected error for empty channel")
	}
}

// --- AnnounceDeparture ---

func TestAnnounceDeparture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "research", "%1", "task:1.1")
	f.register(t, "bob", "research", "%2", "task:1.2")
	f.register(t, "carol", "ops", "%3", "")

	gone, _ := f.dir.Deregister(ctx, "bob")
	rep := f.r.AnnounceDeparture(ctx, *gone)

	if len(rep.Outcomes) != 1 || rep.Outcomes[0].Name != "alice" {
		t.Fatalf("Outcomes = %+v, want alice only", rep.Outcomes)
	}
	want := "[LEFT] bob has left (group: research, pane: task:1.2)"
	if got := f.rec.Texts("task:1.1"); len(got) != 1 || got[0] != want {
		t.Errorf("alice received %v, want %q", got, want)
	}
	if rep.Message == nil || rep.Message.Type != models.MessageLeft {
		t.Errorf("logged = %+v, want LEFT", rep.Message)
	}
}
