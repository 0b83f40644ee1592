package state

import (
	"encoding/json"
	"time"
)

type Mode string

const (
	// ModeCheck routes every submission through a moderator decision.
	ModeCheck Mode = "CHECK"
	// ModeUncheck publishes submissions immediately.
	ModeUncheck Mode = "UNCHECK"
)

// Document is the root persisted aggregate. One instance lives for the whole
// process; every mutation goes through Store.Update, which serializes
// read-modify-write sequences and saves the result.
type Document struct {
	Mode Mode `json:"mode"`

	// ControlMessageID is the pinned status message in the control chat,
	// created lazily and edited in place thereafter.
	ControlMessageID int `json:"control_message_id,omitempty"`

	// Pending maps a decision prompt's message id to the submission awaiting
	// a verdict. An entry is removed exactly once, by whichever decision
	// handler pops it first.
	Pending map[string]PendingDecision `json:"pending"`

	// Counts tracks submissions per user id. Monotonically non-decreasing.
	Counts map[string]int64 `json:"counts"`

	// MediaGroups buffers album parts between first arrival and flush.
	// A key exists only while a flush is in flight; flush pops it, so a
	// duplicate flush observes an empty buffer and becomes a no-op.
	MediaGroups map[string][]MediaItem `json:"media_groups"`

	// MediaGroupsForwarded is the audit trail of control-chat copies made for
	// album parts, age-pruned weekly.
	MediaGroupsForwarded map[string]ForwardTrail `json:"media_groups_forwarded"`

	// History holds bounded, age-pruned delivery records per user id.
	History map[string][]DeliveryRecord `json:"history"`

	// DedupReceipts marks delivery keys whose receipt has been sent. The
	// value is the mark time so the weekly pass can age-trim the ledger;
	// presence alone is the write-once bit. Entries are never reset.
	DedupReceipts map[string]time.Time `json:"dedup_receipts"`

	Bumper Bumper `json:"bumper"`

	Weather WeatherState `json:"weather,omitempty"`
	Daily   DailyState   `json:"daily,omitempty"`

	LastPruneHourly int64 `json:"_last_prune_hourly,omitempty"`
	LastPruneWeekly int64 `json:"_last_prune_weekly,omitempty"`
}

// PendingDecision is one submission awaiting a moderator verdict. Payload is
// the intake package's tagged payload envelope, kept opaque here.
type PendingDecision struct {
	UserID    int64           `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// MediaItem is one buffered part of a multi-part album submission.
type MediaItem struct {
	Subtype  string    `json:"subtype"` // photo | video | document
	FileID   string    `json:"file_id"`
	FileSize int64     `json:"file_size"`
	Caption  string    `json:"caption,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// ForwardTrail records control-chat copies made for one album.
type ForwardTrail struct {
	MessageIDs []int     `json:"message_ids"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeliveryRecord is one measured delivery. DeliverySeconds and SpeedBps are
// nil when the source message carried no usable timestamp.
type DeliveryRecord struct {
	Bytes           int64     `json:"bytes"`
	DeliverySeconds *float64  `json:"delivery_seconds,omitempty"`
	SpeedBps        *float64  `json:"speed_bps,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username,omitempty"`
	FullName        string    `json:"full_name,omitempty"`
}

// Bumper is the promotional footer appended to receipts while active.
// ReachUserIDs is scoped to Version: activation bumps the version and clears
// the set. Insertion order is kept so truncation retains the most recent.
type Bumper struct {
	Active       bool    `json:"active"`
	Text         string  `json:"text"`
	Version      int64   `json:"version"`
	ReachUserIDs []int64 `json:"reach_user_ids"`
}

// AddReach inserts a user id once, preserving insertion order.
// Returns true if the set grew.
func (b *Bumper) AddReach(userID int64) bool {
	for _, id := range b.ReachUserIDs {
		if id == userID {
			return false
		}
	}
	b.ReachUserIDs = append(b.ReachUserIDs, userID)
	return true
}

// WeatherState caches the last poll and the 24h sample history used for
// alert charts.
type WeatherState struct {
	LastTempC      *float64        `json:"last_temp_c,omitempty"`
	LastHumidity   float64         `json:"last_humidity,omitempty"`
	LastPressureMb float64         `json:"last_pressure_mb,omitempty"`
	History        []WeatherSample `json:"history,omitempty"`

	AlertStatus        string    `json:"alert_status,omitempty"` // ok | below | above
	LastAlertMessageID int       `json:"last_alert_message_id,omitempty"`
	LastAlertAt        time.Time `json:"last_alert_at,omitempty"`
}

type WeatherSample struct {
	At       time.Time `json:"at"`
	TempC    float64   `json:"temp_c"`
	Humidity float64   `json:"humidity"`
}

type DailyState struct {
	Enabled bool `json:"enabled"`
}

// NewDocument returns a fresh default document (first run).
func NewDocument() *Document {
	return &Document{
		Mode:                 ModeUncheck,
		Pending:              map[string]PendingDecision{},
		Counts:               map[string]int64{},
		MediaGroups:          map[string][]MediaItem{},
		MediaGroupsForwarded: map[string]ForwardTrail{},
		History:              map[string][]DeliveryRecord{},
		DedupReceipts:        map[string]time.Time{},
	}
}

// normalize ensures maps exist after decoding older or partial files.
func (d *Document) normalize() {
	if d.Mode != ModeCheck && d.Mode != ModeUncheck {
		d.Mode = ModeUncheck
	}
	if d.Pending == nil {
		d.Pending = map[string]PendingDecision{}
	}
	if d.Counts == nil {
		d.Counts = map[string]int64{}
	}
	if d.MediaGroups == nil {
		d.MediaGroups = map[string][]MediaItem{}
	}
	if d.MediaGroupsForwarded == nil {
		d.MediaGroupsForwarded = map[string]ForwardTrail{}
	}
	if d.History == nil {
		d.History = map[string][]DeliveryRecord{}
	}
	if d.DedupReceipts == nil {
		d.DedupReceipts = map[string]time.Time{}
	}
}
