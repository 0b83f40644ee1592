// Package daily posts the morning and evening broadcast texts to the
// publication channel on clock schedules. The enabled flag is persisted so a
// restart keeps the operator's last choice.
package daily

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gatebot/internal/scheduler"
	"gatebot/internal/state"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

type Config struct {
	Morning     string // "HH:MM"
	Evening     string
	MorningText string
	EveningText string

	// ChannelID receives the broadcasts.
	ChannelID int64
}

type Service struct {
	log   logx.Logger
	bot   kit.Adapter
	store *state.Store

	mu  sync.Mutex
	cfg Config
}

func New(cfg Config, bot kit.Adapter, store *state.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Morning == "" {
		cfg.Morning = "09:00"
	}
	if cfg.Evening == "" {
		cfg.Evening = "21:00"
	}
	if cfg.MorningText == "" {
		cfg.MorningText = "Good morning!"
	}
	if cfg.EveningText == "" {
		cfg.EveningText = "Good night!"
	}
	return &Service{log: log, bot: bot, store: store, cfg: cfg}
}

// Schedule registers both clock jobs. The jobs stay registered while the
// service is disabled; each fire re-checks the persisted flag.
func (s *Service) Schedule(sched *scheduler.Service) error {
	if err := sched.RunDaily("daily-morning", s.cfg.Morning, func(ctx context.Context) {
		s.broadcast(ctx, func(c Config) string { return c.MorningText })
	}); err != nil {
		return fmt.Errorf("schedule morning broadcast: %w", err)
	}
	if err := sched.RunDaily("daily-evening", s.cfg.Evening, func(ctx context.Context) {
		s.broadcast(ctx, func(c Config) string { return c.EveningText })
	}); err != nil {
		return fmt.Errorf("schedule evening broadcast: %w", err)
	}
	return nil
}

func (s *Service) broadcast(ctx context.Context, pick func(Config) string) {
	enabled := false
	s.store.View(func(d *state.Document) { enabled = d.Daily.Enabled })
	if !enabled {
		return
	}
	s.mu.Lock()
	text := pick(s.cfg)
	chatID := s.cfg.ChannelID
	s.mu.Unlock()
	if strings.TrimSpace(text) == "" || chatID == 0 {
		return
	}
	if _, err := s.bot.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		s.log.Warn("daily broadcast failed", logx.Err(err))
	}
}

// SetEnabled persists the on/off flag.
func (s *Service) SetEnabled(enabled bool) error {
	return s.store.Update(func(d *state.Document) {
		d.Daily.Enabled = enabled
	})
}

// SetTexts replaces the broadcast texts for the current process. Empty
// arguments keep the existing text.
func (s *Service) SetTexts(morning, evening string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(morning) != "" {
		s.cfg.MorningText = morning
	}
	if strings.TrimSpace(evening) != "" {
		s.cfg.EveningText = evening
	}
}

// Status reports the schedule and the persisted flag.
func (s *Service) Status() string {
	enabled := false
	s.store.View(func(d *state.Document) { enabled = d.Daily.Enabled })
	s.mu.Lock()
	defer s.mu.Unlock()
	onOff := "off"
	if enabled {
		onOff = "on"
	}
	return fmt.Sprintf("daily broadcasts: %s (morning %s, evening %s)", onOff, s.cfg.Morning, s.cfg.Evening)
}
