package state

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

var pruneBase = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func rec(uid int64, age time.Duration) DeliveryRecord {
	return DeliveryRecord{Bytes: 1, Timestamp: pruneBase.Add(-age), UserID: uid}
}

func pruneStore(t *testing.T, ret Retention) *Store {
	t.Helper()
	s := openAt(t, filepath.Join(t.TempDir(), "state.json"), ret)
	s.now = func() time.Time { return pruneBase }
	return s
}

func TestHourlyPruneDropsOldAndCapsPerUser(t *testing.T) {
	s := pruneStore(t, Retention{HistoryMaxAge: 24 * time.Hour, HistoryMaxPerUser: 2})
	d := NewDocument()
	d.History["1"] = []DeliveryRecord{
		rec(1, 30*time.Hour), // too old
		rec(1, 3*time.Hour),
		rec(1, 2*time.Hour),
		rec(1, time.Hour),
	}
	d.History["2"] = []DeliveryRecord{rec(2, 48 * time.Hour)} // all old
	d.History["3"] = []DeliveryRecord{{Bytes: 1, UserID: 3}}  // zero timestamp kept

	s.hourlyPrune(d, pruneBase)

	got := d.History["1"]
	if len(got) != 2 {
		t.Fatalf("user 1 history = %d entries, want 2", len(got))
	}
	// The cap keeps the most recent entries in original order.
	if !got[0].Timestamp.Equal(pruneBase.Add(-2*time.Hour)) || !got[1].Timestamp.Equal(pruneBase.Add(-time.Hour)) {
		t.Errorf("kept wrong entries: %+v", got)
	}
	if _, ok := d.History["2"]; ok {
		t.Error("user with only stale entries should be removed")
	}
	if len(d.History["3"]) != 1 {
		t.Error("zero-timestamp record must survive the age prune")
	}
}

func TestHourlyPruneDropsStaleMediaGroups(t *testing.T) {
	s := pruneStore(t, Retention{MediaGroupMaxAge: 48 * time.Hour})
	d := NewDocument()
	d.MediaGroups["old"] = []MediaItem{{Subtype: "photo", SentAt: pruneBase.Add(-72 * time.Hour)}}
	d.MediaGroups["live"] = []MediaItem{{Subtype: "photo", SentAt: pruneBase.Add(-time.Hour)}}

	s.hourlyPrune(d, pruneBase)

	if _, ok := d.MediaGroups["old"]; ok {
		t.Error("stale buffer kept")
	}
	if _, ok := d.MediaGroups["live"]; !ok {
		t.Error("live buffer dropped")
	}
}

func TestHourlyPrunePendingExpiry(t *testing.T) {
	s := pruneStore(t, Retention{PendingMaxAge: time.Hour})
	d := NewDocument()
	d.Pending["1"] = PendingDecision{UserID: 1, CreatedAt: pruneBase.Add(-2 * time.Hour)}
	d.Pending["2"] = PendingDecision{UserID: 2, CreatedAt: pruneBase.Add(-time.Minute)}

	s.hourlyPrune(d, pruneBase)

	if _, ok := d.Pending["1"]; ok {
		t.Error("expired prompt kept")
	}
	if _, ok := d.Pending["2"]; !ok {
		t.Error("fresh prompt dropped")
	}

	// Zero disables expiry entirely.
	s2 := pruneStore(t, Retention{})
	d2 := NewDocument()
	d2.Pending["1"] = PendingDecision{UserID: 1, CreatedAt: pruneBase.Add(-1000 * time.Hour)}
	s2.hourlyPrune(d2, pruneBase)
	if _, ok := d2.Pending["1"]; !ok {
		t.Error("expiry ran with PendingMaxAge=0")
	}
}

func TestWeeklyPruneEvictsLeastActiveUsers(t *testing.T) {
	s := pruneStore(t, Retention{MaxTrackedUsers: 2})
	d := NewDocument()
	for i, n := range []int{5, 1, 3} {
		uid := fmt.Sprintf("%d", i+1)
		for j := 0; j < n; j++ {
			d.History[uid] = append(d.History[uid], rec(int64(i+1), time.Hour))
		}
	}

	s.weeklyPrune(d, pruneBase)

	if len(d.History) != 2 {
		t.Fatalf("tracked users = %d, want 2", len(d.History))
	}
	if _, ok := d.History["2"]; ok {
		t.Error("least-active user survived eviction")
	}
}

func TestWeeklyPruneTrimsLedgersAndReach(t *testing.T) {
	s := pruneStore(t, Retention{LedgerMaxAge: 24 * time.Hour, ReachCap: 2})
	d := NewDocument()
	d.DedupReceipts["old"] = pruneBase.Add(-48 * time.Hour)
	d.DedupReceipts["live"] = pruneBase.Add(-time.Hour)
	d.MediaGroupsForwarded["old"] = ForwardTrail{MessageIDs: []int{1}, UpdatedAt: pruneBase.Add(-48 * time.Hour)}
	d.MediaGroupsForwarded["live"] = ForwardTrail{MessageIDs: []int{2}, UpdatedAt: pruneBase.Add(-time.Hour)}
	d.Bumper.ReachUserIDs = []int64{1, 2, 3, 4}

	s.weeklyPrune(d, pruneBase)

	if _, ok := d.DedupReceipts["old"]; ok {
		t.Error("old dedup mark kept")
	}
	if _, ok := d.DedupReceipts["live"]; !ok {
		t.Error("live dedup mark dropped")
	}
	if _, ok := d.MediaGroupsForwarded["old"]; ok {
		t.Error("old forwarded trail kept")
	}
	if got := d.Bumper.ReachUserIDs; len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("reach truncation kept %v, want most recent [3 4]", got)
	}
}

func TestLazyPruneGatedByDocumentTimestamps(t *testing.T) {
	s := pruneStore(t, Retention{HistoryMaxAge: time.Hour, HourlyInterval: time.Hour, WeeklyInterval: 7 * 24 * time.Hour})

	if err := s.Update(func(d *Document) {
		d.History["1"] = []DeliveryRecord{rec(1, 2*time.Hour)}
	}); err != nil {
		t.Fatal(err)
	}
	// The first save runs both passes and stamps the document.
	s.View(func(d *Document) {
		if len(d.History) != 0 {
			t.Error("first save should have pruned the stale entry")
		}
		if d.LastPruneHourly != pruneBase.Unix() || d.LastPruneWeekly != pruneBase.Unix() {
			t.Errorf("prune stamps = %d/%d, want %d", d.LastPruneHourly, d.LastPruneWeekly, pruneBase.Unix())
		}
	})

	// Within the interval the pass must not run again.
	s.now = func() time.Time { return pruneBase.Add(30 * time.Minute) }
	if err := s.Update(func(d *Document) {
		d.History["2"] = []DeliveryRecord{rec(2, 2*time.Hour)}
	}); err != nil {
		t.Fatal(err)
	}
	s.View(func(d *Document) {
		if len(d.History["2"]) != 1 {
			t.Error("pass ran before its interval elapsed")
		}
	})

	// After the interval it runs on the next save.
	s.now = func() time.Time { return pruneBase.Add(2 * time.Hour) }
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	s.View(func(d *Document) {
		if len(d.History) != 0 {
			t.Error("pass did not run after its interval elapsed")
		}
	})
}
