// Package weather polls current conditions, mirrors them into the publication
// channel's title, and posts out-of-range alerts with a 24h temperature
// chart. The alert life cycle keeps at most one alert message in the channel.
package weather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"gatebot/internal/scheduler"
	"gatebot/internal/state"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// DefaultInterval is the poll cadence when unconfigured.
const DefaultInterval = 10 * time.Minute

// titleLimit is the platform cap on chat titles.
const titleLimit = 128

// sampleRetention bounds Document.Weather.History growth; the chart only
// looks back 24h.
const sampleRetention = 48 * time.Hour

type Config struct {
	APIKey    string
	Lat       float64
	Lon       float64
	CityLabel string
	MinC      float64
	MaxC      float64
	Interval  time.Duration

	// TitleTemplate formats the channel title; the two %s verbs receive the
	// conditions string ("+5.0 °C · 55%") and the city label.
	TitleTemplate string

	// ChannelID is the chat whose title mirrors the weather and that
	// receives alerts.
	ChannelID int64
}

type Service struct {
	log   logx.Logger
	bot   kit.Adapter
	store *state.Store
	cfg   Config
	loc   *time.Location
	http  *http.Client
	now   func() time.Time
}

func New(cfg Config, bot kit.Adapter, store *state.Store, timezone string, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.TitleTemplate == "" {
		cfg.TitleTemplate = "%s %s"
	}
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Warn("invalid weather timezone, using UTC", logx.String("tz", tz))
		}
	}
	return &Service{
		log:   log,
		bot:   bot,
		store: store,
		cfg:   cfg,
		loc:   loc,
		http:  &http.Client{Timeout: 15 * time.Second},
		now:   time.Now,
	}
}

// Start registers the repeating poll. The first run fires immediately.
func (s *Service) Start(sched *scheduler.Service) {
	sched.RunRepeating("weather", s.cfg.Interval, 0, s.poll)
}

func (s *Service) poll(ctx context.Context) {
	obs, err := s.fetchCurrent(ctx)
	if err != nil {
		s.log.Warn("weather fetch failed", logx.Err(err))
		return
	}
	now := s.now().UTC()

	var history []state.WeatherSample
	if err := s.store.Update(func(d *state.Document) {
		t := obs.TempC
		d.Weather.LastTempC = &t
		d.Weather.LastHumidity = obs.Humidity
		d.Weather.LastPressureMb = obs.PressureMb
		d.Weather.History = append(d.Weather.History, state.WeatherSample{
			At: now, TempC: obs.TempC, Humidity: obs.Humidity,
		})
		d.Weather.History = trimSamples(d.Weather.History, now.Add(-sampleRetention))
		history = append([]state.WeatherSample(nil), d.Weather.History...)
	}); err != nil {
		s.log.Error("state save failed on weather sample", logx.Err(err))
	}
	s.log.Debug("weather observed",
		logx.Float64("temp_c", obs.TempC),
		logx.Float64("humidity", obs.Humidity),
		logx.Float64("pressure_mb", obs.PressureMb))

	if err := s.setTitle(ctx, obs); err != nil {
		s.log.Warn("channel title update failed", logx.Err(err))
	}

	s.transitionAlert(ctx, obs, history, now)
}

// transitionAlert compares the out-of-range status against the stored one.
// Entering a new anomaly replaces the previous alert with a fresh chart;
// recovering deletes it.
func (s *Service) transitionAlert(ctx context.Context, obs Observation, history []state.WeatherSample, now time.Time) {
	status := "ok"
	switch {
	case obs.TempC < s.cfg.MinC:
		status = "below"
	case obs.TempC > s.cfg.MaxC:
		status = "above"
	}

	var prev string
	var prevMsgID int
	s.store.View(func(d *state.Document) {
		prev = d.Weather.AlertStatus
		prevMsgID = d.Weather.LastAlertMessageID
	})
	if prev == "" {
		prev = "ok"
	}

	switch {
	case status != "ok" && status != prev:
		s.deleteAlert(ctx, prevMsgID)
		png, err := renderTempChart(history, now, s.cfg.MinC, s.cfg.MaxC, s.loc, s.cfg.CityLabel)
		if err != nil {
			s.log.Warn("alert chart render failed", logx.Err(err))
			return
		}
		caption := s.alertCaption(obs, status, now)
		ref, err := s.bot.SendPhotoBytes(ctx, kit.ChatTarget{ChatID: s.cfg.ChannelID}, png, caption)
		if err != nil {
			s.log.Warn("alert send failed", logx.Err(err))
			return
		}
		if err := s.store.Update(func(d *state.Document) {
			d.Weather.AlertStatus = status
			d.Weather.LastAlertMessageID = ref.MessageID
			d.Weather.LastAlertAt = now
		}); err != nil {
			s.log.Error("state save failed on weather alert", logx.Err(err))
		}

	case status == "ok" && prev != "ok":
		s.deleteAlert(ctx, prevMsgID)
		if err := s.store.Update(func(d *state.Document) {
			d.Weather.AlertStatus = "ok"
			d.Weather.LastAlertMessageID = 0
		}); err != nil {
			s.log.Error("state save failed on weather recovery", logx.Err(err))
		}
	}
}

func (s *Service) deleteAlert(ctx context.Context, messageID int) {
	if messageID == 0 {
		return
	}
	ref := kit.MessageRef{ChatID: s.cfg.ChannelID, MessageID: messageID}
	if err := s.bot.DeleteMessage(ctx, ref); err != nil {
		s.log.Warn("previous alert delete failed", logx.Int("message_id", messageID), logx.Err(err))
	}
}

func (s *Service) setTitle(ctx context.Context, obs Observation) error {
	if s.cfg.ChannelID == 0 {
		return fmt.Errorf("weather channel id is not configured")
	}
	return s.bot.SetChatTitle(ctx, s.cfg.ChannelID, s.title(obs))
}

func (s *Service) title(obs Observation) string {
	conditions := fmt.Sprintf("%+.1f °C · %d%%", obs.TempC, int(math.Round(obs.Humidity)))
	t := fmt.Sprintf(s.cfg.TitleTemplate, conditions, s.cfg.CityLabel)
	r := []rune(t)
	if len(r) > titleLimit {
		r = r[:titleLimit]
	}
	return string(r)
}

func (s *Service) alertCaption(obs Observation, status string, now time.Time) string {
	kind := "heat anomaly"
	delta := obs.TempC - s.cfg.MaxC
	if status == "below" {
		kind = "cold anomaly"
		delta = s.cfg.MinC - obs.TempC
	}
	return fmt.Sprintf(
		"Weather alert (%s)\nT = %.1f °C; humidity = %.0f%%; range [%.1f; %.1f] °C; delta = %.1f °C\nClassification: %s\nTime: %s",
		s.cfg.CityLabel, obs.TempC, obs.Humidity, s.cfg.MinC, s.cfg.MaxC, delta,
		kind, now.In(s.loc).Format("2006-01-02 15:04"),
	)
}

// Ping runs a manual probe: fetch plus a title update, reporting both
// results. Used by the diagnostics command.
func (s *Service) Ping(ctx context.Context) string {
	obs, err := s.fetchCurrent(ctx)
	if err != nil {
		return "weather ping failed: " + err.Error()
	}
	titleResult := "OK"
	if err := s.setTitle(ctx, obs); err != nil {
		titleResult = "FAIL"
	}
	return fmt.Sprintf("weather ping: temp=%.2f °C; humidity=%.0f%%; pressure=%.1f mb; title update=%s",
		obs.TempC, obs.Humidity, obs.PressureMb, titleResult)
}

func trimSamples(samples []state.WeatherSample, cutoff time.Time) []state.WeatherSample {
	kept := samples[:0]
	for _, sm := range samples {
		if sm.At.IsZero() || !sm.At.Before(cutoff) {
			kept = append(kept, sm)
		}
	}
	return kept
}
