// Package intake is the submission pipeline: it classifies incoming messages,
// tracks per-user counters and delivery history, copies everything to the
// control chat, routes by moderation mode, aggregates albums, and emits
// exactly-once delivery receipts.
package intake

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gatebot/internal/energy"
	"gatebot/internal/scheduler"
	"gatebot/internal/state"
	"gatebot/internal/stats"
	"gatebot/internal/storage"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
	"gatebot/pkg/tgui"
)

// RTTSource supplies the most recent measured round-trip time in
// milliseconds, or 0 when no measurement exists yet.
type RTTSource interface {
	LastRTTMs() float64
}

type Config struct {
	// ControlChatID is the moderation group receiving headers, copies and
	// decision prompts.
	ControlChatID int64
	// UncheckChannelID receives immediate publications in UNCHECK mode.
	UncheckChannelID int64
	// QuietPeriod is the album settle delay before a flush fires.
	QuietPeriod time.Duration
}

// DefaultQuietPeriod matches the album settle window the flush timers use
// when none is configured.
const DefaultQuietPeriod = 1200 * time.Millisecond

type Pipeline struct {
	log   logx.Logger
	bot   kit.Adapter
	store *state.Store
	sched *scheduler.Service
	cfg   Config

	model energy.Model
	audit storage.Store // nil when auditing is disabled
	rtt   RTTSource     // nil when the probe is disabled

	// refreshControl re-renders the pinned control message. Wired by the app
	// after the moderation service exists; nil is tolerated.
	refreshControl func(ctx context.Context)

	now func() time.Time
}

func New(cfg Config, bot kit.Adapter, store *state.Store, sched *scheduler.Service, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	return &Pipeline{
		log:   log,
		bot:   bot,
		store: store,
		sched: sched,
		cfg:   cfg,
		model: energy.DefaultModel(),
		now:   time.Now,
	}
}

func (p *Pipeline) SetEnergyModel(m energy.Model)          { p.model = m }
func (p *Pipeline) SetAudit(st storage.Store)              { p.audit = st }
func (p *Pipeline) SetRTTSource(r RTTSource)               { p.rtt = r }
func (p *Pipeline) SetControlRefresh(fn func(ctx context.Context)) { p.refreshControl = fn }

// DedupKey is the receipt ledger key for a single message delivery.
func DedupKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// AlbumKey is the receipt ledger key for an aggregated album delivery.
func AlbumKey(groupID string) string {
	return "album:" + groupID
}

// HandleMessage is the single entry point for a private submission. Album
// parts divert to the aggregator; everything else runs the full pipeline.
// Egress failures are logged and suppressed: losing a notification is better
// than stalling intake.
func (p *Pipeline) HandleMessage(ctx context.Context, msg *kit.Message) {
	if msg == nil || msg.FromID == 0 {
		return
	}
	if msg.AlbumID != "" {
		p.handleAlbumPart(ctx, msg)
		return
	}

	uid := strconv.FormatInt(msg.FromID, 10)
	var (
		count int64
		prior []state.DeliveryRecord
		mode  state.Mode
	)
	if err := p.store.Update(func(d *state.Document) {
		d.Counts[uid]++
		count = d.Counts[uid]
		prior = append([]state.DeliveryRecord(nil), d.History[uid]...)
		mode = d.Mode
	}); err != nil {
		p.log.Error("state save failed on intake", logx.Err(err))
	}

	payload := Classify(msg)
	size := payload.SizeBytes()
	now := p.now().UTC()
	durationS, speedBps := deliveryMetrics(now, msg.SentAt, size)

	header := p.submissionHeader(msg, count, size, prior, durationS, speedBps)
	control := kit.ChatTarget{ChatID: p.cfg.ControlChatID}
	if _, err := p.bot.SendText(ctx, control, header, nil); err != nil {
		p.log.Warn("control header send failed", logx.Err(err))
	}
	if _, err := p.bot.CopyMessage(ctx, control, kit.MessageRef{ChatID: msg.ChatID, MessageID: msg.ID}); err != nil {
		p.log.Warn("control copy failed", logx.Err(err))
	}

	outcome := "published"
	if mode == state.ModeCheck {
		p.queueForDecision(ctx, msg.FromID, payload, "Decision on this message:")
		outcome = "queued"
	} else {
		Publish(ctx, p.bot, p.log, p.cfg.UncheckChannelID, payload)
	}

	rec := state.DeliveryRecord{
		Bytes:           size,
		DeliverySeconds: durationS,
		SpeedBps:        speedBps,
		Timestamp:       now,
		UserID:          msg.FromID,
		Username:        msg.FromUsername,
		FullName:        msg.FromFullName,
	}
	if err := p.store.Update(func(d *state.Document) {
		d.History[uid] = append(d.History[uid], rec)
	}); err != nil {
		p.log.Error("state save failed on history append", logx.Err(err))
	}

	key := DedupKey(msg.ChatID, msg.ID)
	p.auditAppend(ctx, storage.Entry{
		At: now, UserID: msg.FromID, Username: msg.FromUsername,
		Kind: "submission", PayloadType: payload.Type(), Bytes: size,
		DurationMS: durationMS(durationS), Outcome: outcome, Key: key,
	})
	p.SendReceiptOnce(ctx, key, msg.ChatID, size, speedBps, durationS)
}

// queueForDecision posts an allow/deny prompt to the control chat and records
// the submission as pending, keyed by the prompt's own message id.
func (p *Pipeline) queueForDecision(ctx context.Context, userID int64, payload Payload, title string) {
	raw, err := EncodePayload(payload)
	if err != nil {
		p.log.Error("payload encode failed", logx.String("type", payload.Type()), logx.Err(err))
		return
	}
	kb := tgui.NewInline().Row(tgui.Btn("ALLOW", "allow"), tgui.Btn("DENY", "deny"))
	text, opt := tgui.New().Inline(kb).Line(title).Build()
	ref, err := p.bot.SendText(ctx, kit.ChatTarget{ChatID: p.cfg.ControlChatID}, text, opt)
	if err != nil {
		p.log.Warn("decision prompt send failed", logx.Err(err))
		return
	}
	if err := p.store.Update(func(d *state.Document) {
		d.Pending[strconv.Itoa(ref.MessageID)] = state.PendingDecision{
			UserID:    userID,
			CreatedAt: p.now().UTC(),
			Payload:   raw,
		}
	}); err != nil {
		p.log.Error("state save failed on pending insert", logx.Err(err))
	}
}

// submissionHeader renders the descriptive header sent to the control chat
// before the verbatim copy. Pure formatting; nothing here affects routing.
func (p *Pipeline) submissionHeader(msg *kit.Message, count, size int64, prior []state.DeliveryRecord, durationS, speedBps *float64) string {
	var priorBytes int64
	for _, e := range prior {
		priorBytes += e.Bytes
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User: %s (%s) ID %d\n", msg.FromFullName, atUsername(msg.FromUsername), msg.FromID)
	fmt.Fprintf(&b, "Message #%d from this user.\n", count)
	fmt.Fprintf(&b, "Size: %s; total from them: %s\n", stats.FormatBytes(size), stats.FormatBytes(priorBytes+size))
	if durationS != nil {
		fmt.Fprintf(&b, "Delivery: %.3fs; speed: %s", *durationS, stats.FormatSpeed(speedBps))
	} else {
		b.WriteString("Delivery: unknown")
	}

	sp := stats.Summarize(prior).Speeds
	if sp.Count > 0 {
		mean := sp.Mean
		fmt.Fprintf(&b, "\nHistorical mean speed: %s", stats.FormatSpeed(&mean))
		if speedBps != nil && mean > 0 && !math.IsInf(*speedBps, 0) {
			dev := (*speedBps - mean) / mean * 100
			fmt.Fprintf(&b, "\nDeviation from mean: %+.1f%%", dev)
		} else {
			b.WriteString("\nDeviation from mean: unknown")
		}
	}
	return b.String()
}

func (p *Pipeline) auditAppend(ctx context.Context, e storage.Entry) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Append(ctx, e); err != nil {
		p.log.Warn("audit append failed", logx.String("kind", e.Kind), logx.Err(err))
	}
}

// deliveryMetrics derives the delivery duration and throughput from the
// message timestamp. A zero timestamp means no duration is available; an
// instant delivery of a non-empty payload yields no finite speed and is
// recorded as unknown.
func deliveryMetrics(now, sentAt time.Time, size int64) (durationS, speedBps *float64) {
	if sentAt.IsZero() {
		return nil, nil
	}
	d := now.Sub(sentAt).Seconds()
	durationS = &d
	if d > 0 {
		s := float64(size) / d
		speedBps = &s
	}
	return durationS, speedBps
}

func durationMS(durationS *float64) int64 {
	if durationS == nil {
		return 0
	}
	return int64(*durationS * 1000)
}

func atUsername(u string) string {
	if strings.TrimSpace(u) == "" {
		return "-"
	}
	return "@" + u
}
