package moderation

import (
	"context"
	"strings"

	"gatebot/internal/state"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// Bumper commands. All of them are accepted only inside the control chat,
// and every mutation requires live admin membership, checked per call.

// BumperSet replaces the bumper text (empty clears it).
func (s *Service) BumperSet(ctx context.Context, msg *kit.Message, text string) {
	if !s.adminCommand(ctx, msg) {
		return
	}
	text = strings.TrimSpace(text)
	if err := s.store.Update(func(d *state.Document) {
		d.Bumper.Text = text
	}); err != nil {
		s.log.Error("state save failed on bumper text", logx.Err(err))
	}
	reply := "Bumper text cleared."
	if text != "" {
		reply = "Bumper text set."
	}
	s.reply(ctx, msg, reply)
	s.RefreshControl(ctx)
}

// BumperOn activates the bumper: a new version starts with an empty reach set.
func (s *Service) BumperOn(ctx context.Context, msg *kit.Message) {
	if !s.adminCommand(ctx, msg) {
		return
	}
	if err := s.store.Update(func(d *state.Document) {
		d.Bumper.Active = true
		d.Bumper.Version++
		d.Bumper.ReachUserIDs = nil
	}); err != nil {
		s.log.Error("state save failed on bumper activate", logx.Err(err))
	}
	s.reply(ctx, msg, "Bumper activated.")
	s.RefreshControl(ctx)
}

// BumperOff deactivates the bumper. The reach set is kept for display.
func (s *Service) BumperOff(ctx context.Context, msg *kit.Message) {
	if !s.adminCommand(ctx, msg) {
		return
	}
	if err := s.store.Update(func(d *state.Document) {
		d.Bumper.Active = false
	}); err != nil {
		s.log.Error("state save failed on bumper deactivate", logx.Err(err))
	}
	s.reply(ctx, msg, "Bumper deactivated.")
	s.RefreshControl(ctx)
}

// BumperStatus refreshes the status report on demand. Read-only, so any
// control-chat member may ask.
func (s *Service) BumperStatus(ctx context.Context, msg *kit.Message) {
	if msg.ChatID != s.cfg.ControlChatID {
		return
	}
	s.RefreshControl(ctx)
}

func (s *Service) adminCommand(ctx context.Context, msg *kit.Message) bool {
	if msg.ChatID != s.cfg.ControlChatID {
		return false
	}
	return s.IsAdmin(ctx, msg.FromID)
}

func (s *Service) reply(ctx context.Context, msg *kit.Message, text string) {
	if _, err := s.bot.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, text, nil); err != nil {
		s.log.Warn("command reply failed", logx.Err(err))
	}
}
