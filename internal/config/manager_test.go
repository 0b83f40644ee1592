package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"telegram": {"token": "t", "control_chat_id": -100, "uncheck_channel_id": -200},
		"logging": {"level": "debug", "console": true},
		"state": {"path": "state.json", "history_max_per_user": 50},
		"intake": {"quiet_period": "1.2s"}
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.ControlChatID != -100 || cfg.Telegram.UncheckChannelID != -200 {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if cfg.State.HistoryMaxPerUser != 50 {
		t.Errorf("history_max_per_user = %d", cfg.State.HistoryMaxPerUser)
	}
	if got := ParseDuration(cfg.Intake.QuietPeriod, 0); got != 1200*time.Millisecond {
		t.Errorf("quiet period = %v", got)
	}
}

func TestParseYAMLCoercion(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: t
  control_chat_id: -100
  uncheck_channel_id: -200
logging:
  level: info
  console: false
state:
  path: state.json
intake:
  quiet_period: 2s
daily:
  enabled: true
  morning: "09:00"
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "t" || cfg.Telegram.ControlChatID != -100 {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if !cfg.Daily.Enabled || cfg.Daily.Morning != "09:00" {
		t.Errorf("daily = %+v", cfg.Daily)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"telegram": {"token": "t"},
		"logging": {"level": "info"},
		"state": {"path": "s"},
		"intake": {},
		"surprise": true
	}`)
	if _, err := NewManager(path).Parse(); err == nil || !strings.Contains(err.Error(), "surprise") {
		t.Fatalf("unknown field accepted: %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"telegram":{},"logging":{},"state":{},"intake":{}} {"extra":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing JSON accepted")
	}
}

func TestParseDurationFallback(t *testing.T) {
	def := 5 * time.Second
	cases := map[string]time.Duration{
		"":      def,
		"bogus": def,
		"-1s":   def,
		"250ms": 250 * time.Millisecond,
		"1h":    time.Hour,
	}
	for in, want := range cases {
		if got := ParseDuration(in, def); got != want {
			t.Errorf("ParseDuration(%q) = %v, want %v", in, got, want)
		}
	}
}
