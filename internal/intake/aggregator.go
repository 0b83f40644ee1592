package intake

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gatebot/internal/state"
	"gatebot/internal/stats"
	"gatebot/internal/storage"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// UserRef is the submitter snapshot carried into a deferred album flush; the
// flush runs after the triggering update is long gone.
type UserRef struct {
	ID       int64
	Username string
	FullName string
}

// handleAlbumPart buffers one part of a multi-part submission and schedules a
// flush after the quiet period. A new flush is scheduled on every part rather
// than rescheduling an existing one; the pop in FlushMediaGroup makes the
// extra fires no-ops.
func (p *Pipeline) handleAlbumPart(ctx context.Context, msg *kit.Message) {
	gid := msg.AlbumID
	uid := strconv.FormatInt(msg.FromID, 10)
	item := mediaItemFrom(msg)

	if err := p.store.Update(func(d *state.Document) {
		d.Counts[uid]++
		d.MediaGroups[gid] = append(d.MediaGroups[gid], item)
	}); err != nil {
		p.log.Error("state save failed on album part", logx.Err(err))
	}

	control := kit.ChatTarget{ChatID: p.cfg.ControlChatID}
	if ref, err := p.bot.CopyMessage(ctx, control, kit.MessageRef{ChatID: msg.ChatID, MessageID: msg.ID}); err != nil {
		p.log.Warn("album part copy failed", logx.Err(err))
	} else {
		now := p.now().UTC()
		if err := p.store.Update(func(d *state.Document) {
			tr := d.MediaGroupsForwarded[gid]
			tr.MessageIDs = append(tr.MessageIDs, ref.MessageID)
			tr.UpdatedAt = now
			d.MediaGroupsForwarded[gid] = tr
		}); err != nil {
			p.log.Error("state save failed on forwarded trail", logx.Err(err))
		}
	}

	user := UserRef{ID: msg.FromID, Username: msg.FromUsername, FullName: msg.FromFullName}
	chatID := msg.ChatID
	p.sched.RunOnce("album-flush", p.cfg.QuietPeriod, func(ctx context.Context) {
		p.FlushMediaGroup(ctx, gid, chatID, user)
	})

	if _, err := p.bot.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, "Album received, collecting the parts...", nil); err != nil {
		p.log.Warn("album ack failed", logx.Err(err))
	}
}

// FlushMediaGroup pops the buffered parts for a group and routes them as one
// aggregate submission. An empty pop means another flush already processed
// the group; that is success, not an error.
func (p *Pipeline) FlushMediaGroup(ctx context.Context, gid string, chatID int64, user UserRef) {
	var (
		items []state.MediaItem
		mode  state.Mode
	)
	if err := p.store.Update(func(d *state.Document) {
		items = d.MediaGroups[gid]
		delete(d.MediaGroups, gid)
		mode = d.Mode
	}); err != nil {
		p.log.Error("state save failed on album flush", logx.Err(err))
	}
	if len(items) == 0 {
		return
	}

	now := p.now().UTC()
	var totalBytes int64
	var earliest time.Time
	for _, it := range items {
		totalBytes += it.FileSize
		if !it.SentAt.IsZero() && (earliest.IsZero() || it.SentAt.Before(earliest)) {
			earliest = it.SentAt
		}
	}
	durationS, speedBps := deliveryMetrics(now, earliest, totalBytes)

	var b strings.Builder
	fmt.Fprintf(&b, "Album from %s (%s)\n", user.FullName, atUsername(user.Username))
	fmt.Fprintf(&b, "Parts: %d, total size: %s\n", len(items), stats.FormatBytes(totalBytes))
	if durationS != nil {
		fmt.Fprintf(&b, "Delivery: %.3fs; speed: %s", *durationS, stats.FormatSpeed(speedBps))
	} else {
		b.WriteString("Delivery: unknown")
	}
	if _, err := p.bot.SendText(ctx, kit.ChatTarget{ChatID: p.cfg.ControlChatID}, b.String(), nil); err != nil {
		p.log.Warn("album summary send failed", logx.Err(err))
	}

	payload := GroupPayload{Items: items}
	outcome := "published"
	if mode == state.ModeCheck {
		p.queueForDecision(ctx, user.ID, payload, "Decision on this album:")
		outcome = "queued"
	} else {
		Publish(ctx, p.bot, p.log, p.cfg.UncheckChannelID, payload)
	}

	uid := strconv.FormatInt(user.ID, 10)
	rec := state.DeliveryRecord{
		Bytes:           totalBytes,
		DeliverySeconds: durationS,
		SpeedBps:        speedBps,
		Timestamp:       now,
		UserID:          user.ID,
		Username:        user.Username,
		FullName:        user.FullName,
	}
	if err := p.store.Update(func(d *state.Document) {
		d.History[uid] = append(d.History[uid], rec)
	}); err != nil {
		p.log.Error("state save failed on album history", logx.Err(err))
	}

	key := AlbumKey(gid)
	p.auditAppend(ctx, storage.Entry{
		At: now, UserID: user.ID, Username: user.Username,
		Kind: "album", PayloadType: payload.Type(), Bytes: totalBytes,
		DurationMS: durationMS(durationS), Outcome: outcome, Key: key,
	})
	p.SendReceiptOnce(ctx, key, chatID, totalBytes, speedBps, durationS)
}

func mediaItemFrom(msg *kit.Message) state.MediaItem {
	it := state.MediaItem{Subtype: "unknown", Caption: msg.Caption, SentAt: msg.SentAt}
	if msg.Media != nil {
		it.Subtype = string(msg.Media.Kind)
		it.FileID = msg.Media.FileID
		it.FileSize = msg.Media.FileSize
	}
	return it
}
