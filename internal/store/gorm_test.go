package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/pane"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close(gdb) })
	return gdb
}

func strp(s string) *string { return &s }

// seedRaw inserts a row exactly as given, bypassing normalization, so tests
// can reproduce rows left behind with empty-string panes.
func seedRaw(t *testing.T, gdb *gorm.DB, name string, paneID, stable *string) {
	t.Helper()
	err := gdb.Exec(
		"INSERT INTO agents (id, name, agent_group, description, pane_id, stable_pane, registered_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		name+"-seed", name, "default", "", paneID, stable, time.Now(),
	).Error
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func names(t *testing.T, s Store) map[string]bool {
	t.Helper()
	agents, err := s.ListAgents(context.Background(), "")
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	out := make(map[string]bool)
	for _, a := range agents {
		out[a.Name] = true
	}
	return out
}

func TestGorm_SaveAgent_EmptyStablePaneDoesNotWipeOthers(t *testing.T) {
	gdb := openTestDB(t)
	s := NewGorm(gdb)
	ctx := context.Background()

	seedRaw(t, gdb, "big-bee", strp("%1"), strp(""))
	seedRaw(t, gdb, "lil-bee", strp("%2"), strp(""))

	dev := models.Agent{ID: "dev-1", Name: "dev", Group: "default", PaneID: strp("%4"), StablePane: strp("")}
	saved, evicted, err := s.SaveAgent(ctx, dev, MatchAgent(dev))
	if err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}
	if len(evicted) != 0 {
		t.Errorf("evicted = %v, want none", evicted)
	}
	if saved.StablePane != nil {
		t.Errorf("saved.StablePane = %q, want NULL", *saved.StablePane)
	}

	got := names(t, s)
	for _, n := range []string{"big-bee", "lil-bee", "dev"} {
		if !got[n] {
			t.Errorf("agent %q missing after register, have %v", n, got)
		}
	}
}

func TestGuardedDelete_VersusNaiveDelete(t *testing.T) {
	ctx := context.Background()

	// The naive predicate ORs every field, including empty ones.
	naive := func(gdb *gorm.DB, paneID, stable, name string) {
		gdb.Exec("DELETE FROM agents WHERE pane_id = ? OR stable_pane = ? OR name = ?", paneID, stable, name)
	}

	naiveDB := openTestDB(t)
	seedRaw(t, naiveDB, "big-bee", strp("%1"), strp(""))
	seedRaw(t, naiveDB, "lil-bee", strp("%2"), strp(""))
	naive(naiveDB, "%4", "", "dev")
	if got := names(t, NewGorm(naiveDB)); len(got) != 0 {
		t.Fatalf("naive delete left %v; expected it to wipe rows sharing the empty value", got)
	}

	guardedDB := openTestDB(t)
	seedRaw(t, guardedDB, "big-bee", strp("%1"), strp(""))
	seedRaw(t, guardedDB, "lil-bee", strp("%2"), strp(""))
	s := NewGorm(guardedDB)
	dev := models.Agent{ID: "dev-1", Name: "dev", Group: "default", PaneID: strp("%4"), StablePane: strp("")}
	if _, _, err := s.SaveAgent(ctx, dev, MatchAgent(dev)); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}
	if got := names(t, s); len(got) != 3 {
		t.Errorf("guarded delete left %v, want all three agents", got)
	}
}

func TestMatch_NullNeverEqualsEmpty(t *testing.T) {
	gdb := openTestDB(t)
	seedRaw(t, gdb, "nulls", nil, nil)

	var n int64
	gdb.Model(&models.Agent{}).Where("stable_pane = ?", "").Count(&n)
	if n != 0 {
		t.Errorf("stable_pane = '' matched %d NULL rows, want 0", n)
	}

	m := Match{StablePane: ""}
	if where, _ := m.Where(); where != "" {
		t.Errorf("Match{}.Where() = %q, want no predicate", where)
	}
}

func TestGorm_SaveAgent_EvictsOtherOwnerOfPane(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	old := models.Agent{ID: "old-1", Name: "old", Group: "default", PaneID: strp("%3"), StablePane: strp("work:0.1")}
	if _, _, err := s.SaveAgent(ctx, old, MatchAgent(old)); err != nil {
		t.Fatalf("save old: %v", err)
	}
	other := models.Agent{ID: "other-1", Name: "other", Group: "default", PaneID: strp("%8")}
	if _, _, err := s.SaveAgent(ctx, other, MatchAgent(other)); err != nil {
		t.Fatalf("save other: %v", err)
	}

	// Same stable pane, different ephemeral id (session restarted).
	fresh := models.Agent{ID: "fresh-1", Name: "fresh", Group: "default", PaneID: strp("%9"), StablePane: strp("work:0.1")}
	_, evicted, err := s.SaveAgent(ctx, fresh, MatchAgent(fresh))
	if err != nil {
		t.Fatalf("save fresh: %v", err)
	}
	if len(evicted) != 1 || evicted[0].Name != "old" {
		t.Errorf("evicted = %+v, want [old]", evicted)
	}
	got := names(t, s)
	if got["old"] {
		t.Error("old still present after its pane was claimed")
	}
	if !got["other"] || !got["fresh"] {
		t.Errorf("agents = %v, want other and fresh", got)
	}
}

func TestGorm_SaveAgent_ReRegistrationKeepsID(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	first := models.Agent{ID: "alice-aaaa", Name: "alice", Group: "research", PaneID: strp("%1")}
	if _, _, err := s.SaveAgent(ctx, first, MatchAgent(first)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := models.Agent{ID: "alice-bbbb", Name: "alice", Group: "research", PaneID: strp("%5"), StablePane: strp("task:1.1")}
	saved, evicted, err := s.SaveAgent(ctx, second, MatchAgent(second))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if len(evicted) != 0 {
		t.Errorf("re-registration evicted %v", evicted)
	}
	if saved.ID != "alice-aaaa" {
		t.Errorf("ID = %q, want original alice-aaaa", saved.ID)
	}
	if saved.PaneID == nil || *saved.PaneID != "%5" {
		t.Errorf("PaneID = %v, want %%5", saved.PaneID)
	}
	if saved.StablePane == nil || *saved.StablePane != "task:1.1" {
		t.Errorf("StablePane = %v, want task:1.1", saved.StablePane)
	}

	agents, _ := s.ListAgents(ctx, "")
	if len(agents) != 1 {
		t.Errorf("len(agents) = %d, want 1", len(agents))
	}
}

func TestGorm_DeleteAgent(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	a := models.Agent{ID: "bob-1", Name: "bob", Group: "research", PaneID: strp("%2"), StablePane: strp("task:1.2")}
	s.SaveAgent(ctx, a, MatchAgent(a))

	snap, err := s.DeleteAgent(ctx, "bob")
	if err != nil {
		t.Fatalf("DeleteAgent: %v", err)
	}
	if snap == nil || snap.ID != "bob-1" || snap.Group != "research" {
		t.Fatalf("snapshot = %+v, want bob's row", snap)
	}
	if got, _ := s.GetAgent(ctx, "bob"); got != nil {
		t.Error("bob still present after delete")
	}

	snap, err = s.DeleteAgent(ctx, "bob")
	if err != nil {
		t.Fatalf("second DeleteAgent: %v", err)
	}
	if snap != nil {
		t.Errorf("second delete snapshot = %+v, want nil", snap)
	}
}

func TestGorm_DeleteAgentIf(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	bob := models.Agent{ID: "bob-1", Name: "bob", Group: "g", PaneID: strp("%2"), StablePane: strp("task:1.2")}
	dora := models.Agent{ID: "dora-1", Name: "dora", Group: "g"}
	for _, a := range []models.Agent{bob, dora} {
		if _, _, err := s.SaveAgent(ctx, a, MatchAgent(a)); err != nil {
			t.Fatalf("save %s: %v", a.Name, err)
		}
	}

	snap, err := s.DeleteAgentIf(ctx, "bob", func(a models.Agent) bool { return pane.Value(a.StablePane) == "task:9.9" })
	if err != nil {
		t.Fatalf("DeleteAgentIf: %v", err)
	}
	if snap != nil {
		t.Errorf("snapshot = %+v, want nil when cond rejects", snap)
	}
	if got, _ := s.GetAgent(ctx, "bob"); got == nil {
		t.Fatal("bob removed although cond rejected the row")
	}

	snap, err = s.DeleteAgentIf(ctx, "bob", func(a models.Agent) bool { return pane.Value(a.StablePane) == "task:1.2" })
	if err != nil || snap == nil || snap.ID != "bob-1" {
		t.Fatalf("DeleteAgentIf = %+v, %v, want bob's row", snap, err)
	}
	if got, _ := s.GetAgent(ctx, "bob"); got != nil {
		t.Error("bob still present after accepted delete")
	}

	// NULL panes still match their own row.
	snap, err = s.DeleteAgentIf(ctx, "dora", func(models.Agent) bool { return true })
	if err != nil || snap == nil {
		t.Fatalf("DeleteAgentIf(dora) = %+v, %v, want dora's row", snap, err)
	}
}

func TestGorm_ListAndGroupCounts(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	for _, a := range []models.Agent{
		{ID: "c-1", Name: "carol", Group: "ops"},
		{ID: "a-1", Name: "alice", Group: "research"},
		{ID: "b-1", Name: "bob", Group: "research"},
	} {
		if _, _, err := s.SaveAgent(ctx, a, MatchAgent(a)); err != nil {
			t.Fatalf("save %s: %v", a.Name, err)
		}
	}

	research, err := s.ListAgents(ctx, "research")
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(research) != 2 || research[0].Name != "alice" || research[1].Name != "bob" {
		t.Errorf("research = %+v, want alice, bob", research)
	}

	counts, err := s.GroupCounts(ctx)
	if err != nil {
		t.Fatalf("GroupCounts: %v", err)
	}
	want := []GroupCount{{Name: "ops", Count: 1}, {Name: "research", Count: 2}}
	if len(counts) != len(want) {
		t.Fatalf("GroupCounts = %+v, want %+v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("GroupCounts[%d] = %+v, want %+v", i, counts[i], want[i])
		}
	}
}

func TestGorm_AppendMessage_MonotonicIDs(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	var last uint64
	for i := 0; i < 5; i++ {
		msg := &models.Message{Type: models.MessageBroadcast, FromAgent: strp("alice"), Content: "hi", Timestamp: time.Now()}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		if msg.ID <= last {
			t.Fatalf("id %d not greater than previous %d", msg.ID, last)
		}
		last = msg.ID
	}
	if last != 5 {
		t.Errorf("last id = %d, want 5", last)
	}
}

func TestGorm_AppendMessage_Concurrent(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	const n = 20
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := &models.Message{Type: models.MessageDM, Content: "x", Timestamp: time.Now()}
			if err := s.AppendMessage(ctx, msg); err != nil {
				t.Errorf("AppendMessage: %v", err)
				return
			}
			ids <- msg.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct ids, want %d", len(seen), n)
	}
}

func TestGorm_Histories(t *testing.T) {
	s := NewGorm(openTestDB(t))
	ctx := context.Background()

	add := func(typ string, from, to, channel *string, content string) {
		t.Helper()
		if err := s.AppendMessage(ctx, &models.Message{Type: typ, FromAgent: from, ToAgent: to, Channel: channel, Content: content, Timestamp: time.Now()}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	add(models.MessageDM, strp("alice"), strp("bob"), nil, "1")
	add(models.MessageChannel, strp("alice"), nil, strp("research"), "2")
	add(models.MessageDM, strp("bob"), strp("alice"), nil, "3")
	add(models.MessageDM, strp("alice"), strp("carol"), nil, "4")
	add(models.MessageChannel, strp("bob"), nil, strp("research"), "5")

	dms, err := s.DirectMessages(ctx, "alice", "bob", 10)
	if err != nil {
		t.Fatalf("DirectMessages: %v", err)
	}
	if len(dms) != 2 || dms[0].Content != "3" || dms[1].Content != "1" {
		t.Errorf("DirectMessages = %+v, want [3 1]", dms)
	}

	ch, err := s.ChannelMessages(ctx, "research", 1)
	if err != nil {
		t.Fatalf("ChannelMessages: %v", err)
	}
	if len(ch) != 1 || ch[0].Content != "5" {
		t.Errorf("ChannelMessages = %+v, want [5]", ch)
	}

	since, err := s.MessagesSince(ctx, 2, 2)
	if err != nil {
		t.Fatalf("MessagesSince: %v", err)
	}
	if len(since) != 2 || since[0].ID != 3 || since[1].ID != 4 {
		t.Errorf("MessagesSince = %+v, want ids 3,4", since)
	}

	counts, err := s.ChannelCounts(ctx)
	if err != nil {
		t.Fatalf("ChannelCounts: %v", err)
	}
	if len(counts) != 1 || counts[0].Name != "research" || counts[0].Count != 2 {
		t.Errorf("ChannelCounts = %+v", counts)
	}

	types, err := s.MessageTypeCounts(ctx)
	if err != nil {
		t.Fatalf("MessageTypeCounts: %v", err)
	}
	if types[models.MessageDM] != 3 || types[models.MessageChannel] != 2 {
		t.Errorf("MessageTypeCounts = %v", types)
	}
}

func TestGorm_ClosedDBIsUnavailable(t *testing.T) {
	gdb := openTestDB(t)
	s := NewGorm(gdb)
	db.Close(gdb)

	_, err := s.ListAgents(context.Background(), "")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}
