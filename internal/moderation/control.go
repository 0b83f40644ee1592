package moderation

import (
	"context"
	"fmt"
	"strings"

	"gatebot/internal/state"
	"gatebot/internal/stats"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
	"gatebot/pkg/tgui"
)

// controlTextLimit caps the status report to the platform message limit.
const controlTextLimit = 4096

// maxDayRows bounds the per-day breakdown shown in the status report.
const maxDayRows = 14

// RefreshControl re-renders the pinned status message: edit in place when an
// id is known, otherwise create and pin a new one. An edit failure (message
// deleted by hand) falls back to create+pin, so the report self-heals.
func (s *Service) RefreshControl(ctx context.Context) {
	var (
		mode state.Mode
		cmid int
		text string
	)
	s.store.View(func(d *state.Document) {
		mode = d.Mode
		cmid = d.ControlMessageID
		text = controlText(d)
	})

	opt := modeKeyboardOptions(mode)
	if cmid != 0 {
		err := s.bot.EditText(ctx, kit.MessageRef{ChatID: s.cfg.ControlChatID, MessageID: cmid}, text, opt)
		if err == nil {
			return
		}
		s.log.Warn("control message edit failed, recreating", logx.Err(err))
	}
	s.createControl(ctx, text, opt)
}

func (s *Service) createControl(ctx context.Context, text string, opt *kit.SendOptions) {
	ref, err := s.bot.SendText(ctx, kit.ChatTarget{ChatID: s.cfg.ControlChatID}, text, opt)
	if err != nil {
		s.log.Warn("control message send failed", logx.Err(err))
		return
	}
	if err := s.bot.PinMessage(ctx, ref); err != nil {
		s.log.Warn("control message pin failed", logx.Err(err))
	}
	if err := s.store.Update(func(d *state.Document) {
		d.ControlMessageID = ref.MessageID
	}); err != nil {
		s.log.Error("state save failed on control message id", logx.Err(err))
	}
}

// modeKeyboardOptions builds the single toggle button offering the other mode.
func modeKeyboardOptions(cur state.Mode) *kit.SendOptions {
	next := state.ModeCheck
	if cur == state.ModeCheck {
		next = state.ModeUncheck
	}
	kb := tgui.NewInline().Row(tgui.Btn(string(next), "set_"+string(next)))
	return &kit.SendOptions{ReplyMarkupAdapter: kb.Markup()}
}

// controlText renders the status report from a document snapshot. Called
// under the store lock; must not call back into the store.
func controlText(d *state.Document) string {
	reach := stats.ComputeReach(d.History)

	var b strings.Builder
	fmt.Fprintf(&b, "Moderation mode: %s\n", d.Mode)
	fmt.Fprintf(&b, "Unique users in history: %d\n\n", reach.TotalUniqueUsers)

	status := "off"
	if d.Bumper.Active {
		status = "ACTIVE"
	}
	fmt.Fprintf(&b, "Bumper: %s\n", status)
	if strings.TrimSpace(d.Bumper.Text) != "" {
		fmt.Fprintf(&b, "Text: %q\n", d.Bumper.Text)
	} else {
		b.WriteString("Text: -\n")
	}
	fmt.Fprintf(&b, "Reach since activation: %d users\n\n", len(d.Bumper.ReachUserIDs))

	b.WriteString("Reach per day (most recent):\n")
	for i, day := range reach.PerDay {
		if i >= maxDayRows {
			break
		}
		fmt.Fprintf(&b, "%s: %d\n", day.Day, day.Count)
	}
	b.WriteString("\nReach per hour:\n")
	byHour := make(map[int]int, len(reach.PerHour))
	for _, h := range reach.PerHour {
		byHour[h.Hour] = h.Count
	}
	for h := 0; h < 24; h++ {
		fmt.Fprintf(&b, "%02d:00 - %d\n", h, byHour[h])
	}

	return truncateRunes(strings.TrimRight(b.String(), "\n"), controlTextLimit)
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) > limit {
		r = r[:limit]
	}
	return string(r)
}
