package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	logx "gatebot/pkg/logx"
)

// Retention bounds the document's growth. Zero fields take defaults.
type Retention struct {
	HistoryMaxAge     time.Duration // hourly: drop history entries older than this
	HistoryMaxPerUser int           // hourly: cap entries per user, keep most recent
	MaxTrackedUsers   int           // weekly: evict least-active users beyond this
	LedgerMaxAge      time.Duration // weekly: age-trim dedup ledger + forwarded trail
	MediaGroupMaxAge  time.Duration // hourly: drop stale album buffers
	ReachCap          int           // weekly: truncate bumper reach, keep most recent
	PendingMaxAge     time.Duration // hourly: 0 disables pending expiry

	HourlyInterval time.Duration
	WeeklyInterval time.Duration
}

func DefaultRetention() Retention {
	return Retention{
		HistoryMaxAge:     24 * time.Hour,
		HistoryMaxPerUser: 50,
		MaxTrackedUsers:   5000,
		LedgerMaxAge:      24 * time.Hour,
		MediaGroupMaxAge:  48 * time.Hour,
		ReachCap:          5000,
		HourlyInterval:    time.Hour,
		WeeklyInterval:    7 * 24 * time.Hour,
	}
}

func (r Retention) withDefaults() Retention {
	def := DefaultRetention()
	if r.HistoryMaxAge <= 0 {
		r.HistoryMaxAge = def.HistoryMaxAge
	}
	if r.HistoryMaxPerUser <= 0 {
		r.HistoryMaxPerUser = def.HistoryMaxPerUser
	}
	if r.MaxTrackedUsers <= 0 {
		r.MaxTrackedUsers = def.MaxTrackedUsers
	}
	if r.LedgerMaxAge <= 0 {
		r.LedgerMaxAge = def.LedgerMaxAge
	}
	if r.MediaGroupMaxAge <= 0 {
		r.MediaGroupMaxAge = def.MediaGroupMaxAge
	}
	if r.ReachCap <= 0 {
		r.ReachCap = def.ReachCap
	}
	if r.HourlyInterval <= 0 {
		r.HourlyInterval = def.HourlyInterval
	}
	if r.WeeklyInterval <= 0 {
		r.WeeklyInterval = def.WeeklyInterval
	}
	return r
}

// Store owns the document and its file. All access goes through Update/View,
// which hold an exclusive lock for the whole read-modify-write sequence; the
// invariants around pop-and-check (pending, media groups, receipts) rely on
// that.
type Store struct {
	mu   sync.Mutex
	path string
	ret  Retention
	log  logx.Logger
	now  func() time.Time

	doc *Document
}

// Open loads the document at path. A missing or unreadable file yields a
// fresh default document; corruption is swallowed, never propagated.
func Open(path string, ret Retention, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{path: path, ret: ret.withDefaults(), log: log, now: time.Now}
	s.doc = s.load()
	return s
}

func (s *Store) load() *Document {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("state file unreadable, starting fresh", logx.Err(err))
		}
		return NewDocument()
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		s.log.Warn("state file corrupt, starting fresh", logx.Err(err))
		return NewDocument()
	}
	d.normalize()
	return &d
}

// Update runs fn against the document under the store lock and saves the
// result. A save failure propagates: a failed state write is a correctness
// problem the caller should see.
func (s *Store) Update(fn func(doc *Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
	return s.saveLocked()
}

// View runs fn against the document under the store lock without saving.
// fn must not retain references into the document.
func (s *Store) View(fn func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Save persists the current document (used on shutdown).
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	now := s.now().UTC()
	ts := now.Unix()

	if ts-s.doc.LastPruneHourly >= int64(s.ret.HourlyInterval/time.Second) {
		s.hourlyPrune(s.doc, now)
		s.doc.LastPruneHourly = ts
	}
	if ts-s.doc.LastPruneWeekly >= int64(s.ret.WeeklyInterval/time.Second) {
		s.weeklyPrune(s.doc, now)
		s.doc.LastPruneWeekly = ts
	}

	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
