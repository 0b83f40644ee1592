package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "gatebot/pkg/logx"
)

func openAt(t *testing.T, path string, ret Retention) *Store {
	t.Helper()
	return Open(path, ret, logx.Nop())
}

func TestOpenMissingFileYieldsDefaults(t *testing.T) {
	s := openAt(t, filepath.Join(t.TempDir(), "state.json"), Retention{})
	s.View(func(d *Document) {
		if d.Mode != ModeUncheck {
			t.Fatalf("mode = %q, want %q", d.Mode, ModeUncheck)
		}
		if d.Pending == nil || d.Counts == nil || d.History == nil || d.DedupReceipts == nil {
			t.Fatal("maps not initialized")
		}
	})
}

func TestOpenCorruptFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := openAt(t, path, Retention{})
	s.View(func(d *Document) {
		if d.Mode != ModeUncheck {
			t.Fatalf("corrupt file should start fresh, mode = %q", d.Mode)
		}
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := openAt(t, path, Retention{})

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	dur := 5.0
	if err := s.Update(func(d *Document) {
		d.Mode = ModeCheck
		d.Counts["42"] = 3
		d.History["42"] = []DeliveryRecord{{
			Bytes: 2000000, DeliverySeconds: &dur, Timestamp: now, UserID: 42,
		}}
		d.DedupReceipts["42:7"] = now
		d.Bumper = Bumper{Active: true, Text: "hi", Version: 2, ReachUserIDs: []int64{42}}
	}); err != nil {
		t.Fatal(err)
	}

	reopened := openAt(t, path, Retention{})
	reopened.View(func(d *Document) {
		if d.Mode != ModeCheck {
			t.Errorf("mode = %q, want CHECK", d.Mode)
		}
		if d.Counts["42"] != 3 {
			t.Errorf("count = %d, want 3", d.Counts["42"])
		}
		recs := d.History["42"]
		if len(recs) != 1 || recs[0].Bytes != 2000000 {
			t.Fatalf("history = %+v", recs)
		}
		if recs[0].DeliverySeconds == nil || *recs[0].DeliverySeconds != 5.0 {
			t.Errorf("delivery seconds lost: %+v", recs[0].DeliverySeconds)
		}
		if _, ok := d.DedupReceipts["42:7"]; !ok {
			t.Error("dedup mark lost")
		}
		if !d.Bumper.Active || d.Bumper.Version != 2 || len(d.Bumper.ReachUserIDs) != 1 {
			t.Errorf("bumper = %+v", d.Bumper)
		}
	})
}

func TestSaveIsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s := openAt(t, path, Retention{})
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	// No temp files may survive a save.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestAddReachIsOrderedSet(t *testing.T) {
	var b Bumper
	if !b.AddReach(1) || !b.AddReach(2) {
		t.Fatal("first inserts should grow the set")
	}
	if b.AddReach(1) {
		t.Fatal("duplicate insert should not grow the set")
	}
	if len(b.ReachUserIDs) != 2 || b.ReachUserIDs[0] != 1 || b.ReachUserIDs[1] != 2 {
		t.Fatalf("reach = %v", b.ReachUserIDs)
	}
}
