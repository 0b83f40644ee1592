// Package moderation resolves pending decision prompts, maintains the pinned
// control-chat status message, and owns the bumper commands.
package moderation

import (
	"context"
	"strconv"
	"time"

	"gatebot/internal/intake"
	"gatebot/internal/state"
	"gatebot/internal/storage"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

type Config struct {
	// ControlChatID is the moderation group holding prompts and the pinned
	// status message.
	ControlChatID int64
	// ApprovedChannelID receives submissions an admin allowed.
	ApprovedChannelID int64
}

type Service struct {
	log   logx.Logger
	bot   kit.Adapter
	store *state.Store
	cfg   Config
	audit storage.Store // nil when auditing is disabled
	now   func() time.Time
}

func New(cfg Config, bot kit.Adapter, store *state.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, bot: bot, store: store, cfg: cfg, now: time.Now}
}

func (s *Service) SetAudit(st storage.Store) { s.audit = st }

// Resolve applies an admin verdict to the prompt identified by its message
// id. The pending entry is popped under the store lock; a missing entry means
// the prompt was already resolved and the whole call is a no-op. Approval
// publishes the original payload exactly once.
func (s *Service) Resolve(ctx context.Context, prompt kit.MessageRef, allow bool) {
	key := strconv.Itoa(prompt.MessageID)
	var (
		entry state.PendingDecision
		found bool
	)
	if err := s.store.Update(func(d *state.Document) {
		entry, found = d.Pending[key]
		delete(d.Pending, key)
	}); err != nil {
		s.log.Error("state save failed on decision pop", logx.Err(err))
	}

	if err := s.bot.ClearReplyMarkup(ctx, prompt); err != nil {
		s.log.Warn("prompt markup clear failed", logx.Err(err))
	}
	if !found {
		return
	}

	verdict := "denied"
	controlNote := "Decision: denied."
	userNote := "Your submission did not pass moderation."
	if allow {
		verdict = "approved"
		controlNote = "Decision: approved."
		userNote = "Your submission was approved!"
	}
	if _, err := s.bot.SendText(ctx, kit.ChatTarget{ChatID: s.cfg.ControlChatID}, controlNote, nil); err != nil {
		s.log.Warn("decision note send failed", logx.Err(err))
	}
	if _, err := s.bot.SendText(ctx, kit.ChatTarget{ChatID: entry.UserID}, userNote, nil); err != nil {
		s.log.Warn("decision notify failed", logx.Int64("user", entry.UserID), logx.Err(err))
	}

	var payloadType string
	if allow {
		payload, err := intake.DecodePayload(entry.Payload)
		if err != nil {
			s.log.Error("pending payload decode failed", logx.String("prompt", key), logx.Err(err))
		} else {
			payloadType = payload.Type()
			intake.Publish(ctx, s.bot, s.log, s.cfg.ApprovedChannelID, payload)
		}
	}

	s.auditAppend(ctx, storage.Entry{
		At: s.now().UTC(), UserID: entry.UserID, Kind: "decision",
		PayloadType: payloadType, Outcome: verdict, Key: key,
	})
}

// SetMode switches the moderation mode and refreshes the status message.
func (s *Service) SetMode(ctx context.Context, mode state.Mode) {
	if mode != state.ModeCheck && mode != state.ModeUncheck {
		return
	}
	if err := s.store.Update(func(d *state.Document) {
		d.Mode = mode
	}); err != nil {
		s.log.Error("state save failed on mode switch", logx.Err(err))
	}
	s.RefreshControl(ctx)
}

// IsAdmin checks live membership in the control chat's admin list. Results
// are never cached; a transport failure denies.
func (s *Service) IsAdmin(ctx context.Context, userID int64) bool {
	admins, err := s.bot.ChatAdmins(ctx, s.cfg.ControlChatID)
	if err != nil {
		s.log.Warn("admin list fetch failed", logx.Err(err))
		return false
	}
	for _, a := range admins {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Service) auditAppend(ctx context.Context, e storage.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", logx.String("kind", e.Kind), logx.Err(err))
	}
}
