package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (build tag "sqlite")
//
// If Driver is empty or "none", auditing is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one pipeline event: a routed submission, a flushed album,
// a moderator decision, or an emitted receipt. Keep it compact and
// schema-stable.
type Entry struct {
	At          time.Time `json:"at"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Kind        string    `json:"kind"`                   // submission | album | decision | receipt
	PayloadType string    `json:"payload_type,omitempty"` // text | photo | video | document | group
	Bytes       int64     `json:"bytes,omitempty"`
	DurationMS  int64     `json:"duration_ms,omitempty"`
	Outcome     string    `json:"outcome,omitempty"` // published | queued | approved | denied | sent
	Key         string    `json:"key,omitempty"`     // dedup key or prompt id
}
