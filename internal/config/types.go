package config

// Config is the root configuration document. It is decoded strictly
// (unknown fields are rejected) from JSON or YAML.
//
// All duration fields are Go duration strings (e.g. "1.2s", "1h").
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	State      StateConfig      `json:"state"`
	Intake     IntakeConfig     `json:"intake"`
	Moderation ModerationConfig `json:"moderation,omitempty"`
	Energy     EnergyConfig     `json:"energy,omitempty"`
	Audit      *AuditConfig     `json:"audit,omitempty"`
	Netprobe   NetprobeConfig   `json:"netprobe,omitempty"`
	Weather    WeatherConfig    `json:"weather,omitempty"`
	Daily      DailyConfig      `json:"daily,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// ControlChatID is the moderation group: decision prompts, submission
	// copies and the pinned status message all land here.
	ControlChatID int64 `json:"control_chat_id"`

	// UncheckChannelID receives immediate publications (UNCHECK mode) and
	// the daily/weather posts.
	UncheckChannelID int64 `json:"uncheck_channel_id"`

	// ApprovedChannelID receives submissions approved by a moderator.
	ApprovedChannelID int64 `json:"approved_channel_id"`

	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StateConfig controls the persisted document and its retention passes.
// Zero values fall back to built-in defaults (see internal/state).
type StateConfig struct {
	Path string `json:"path"`

	HistoryMaxAge     string `json:"history_max_age,omitempty"`
	HistoryMaxPerUser int    `json:"history_max_per_user,omitempty"`
	MaxTrackedUsers   int    `json:"max_tracked_users,omitempty"`
	LedgerMaxAge      string `json:"ledger_max_age,omitempty"`
	MediaGroupMaxAge  string `json:"media_group_max_age,omitempty"`
	ReachCap          int    `json:"reach_cap,omitempty"`

	HourlyInterval string `json:"hourly_interval,omitempty"`
	WeeklyInterval string `json:"weekly_interval,omitempty"`
}

type IntakeConfig struct {
	// QuietPeriod is how long after an album part arrives before the album
	// is considered complete and flushed.
	QuietPeriod string `json:"quiet_period,omitempty"`
}

type ModerationConfig struct {
	// PendingMaxAge drops unresolved decision prompts older than this during
	// the hourly retention pass. "0s" (the default) keeps them forever.
	PendingMaxAge string `json:"pending_max_age,omitempty"`
}

// EnergyConfig tunes the delivery energy model. Zero values fall back to the
// built-in profile table (see internal/energy).
type EnergyConfig struct {
	Overhead           float64 `json:"overhead,omitempty"`
	EncryptionOverhead float64 `json:"encryption_overhead,omitempty"`
	RetryRate          float64 `json:"retry_rate,omitempty"`
	ServerNetworkW     float64 `json:"server_network_w,omitempty"`
	ServerShare        float64 `json:"server_share,omitempty"`

	Profiles map[string]EnergyProfile `json:"profiles,omitempty"`
}

type EnergyProfile struct {
	RadioW       float64 `json:"radio_w"`
	CPUW         float64 `json:"cpu_w"`
	TailS        float64 `json:"tail_s"`
	CapacityMbps float64 `json:"capacity_mbps"`
}

// AuditConfig controls the optional delivery audit store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (build tag "sqlite")
//
// If the section is omitted or Driver is empty/"none", auditing is disabled.
type AuditConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type NetprobeConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
}

type WeatherConfig struct {
	Enabled   bool    `json:"enabled"`
	APIKey    string  `json:"api_key,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	CityLabel string  `json:"city_label,omitempty"`
	MinC      float64 `json:"min_c,omitempty"`
	MaxC      float64 `json:"max_c,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
	Interval  string  `json:"interval,omitempty"`

	// TitleTemplate formats the channel title; %s placeholders are
	// temperature and city label.
	TitleTemplate string `json:"title_template,omitempty"`
}

type DailyConfig struct {
	Enabled     bool   `json:"enabled"`
	Morning     string `json:"morning,omitempty"` // "HH:MM"
	Evening     string `json:"evening,omitempty"`
	MorningText string `json:"morning_text,omitempty"`
	EveningText string `json:"evening_text,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}
