package intake

import (
	"context"
	"fmt"
	"strings"

	"gatebot/internal/energy"
	"gatebot/internal/state"
	"gatebot/internal/stats"
	"gatebot/internal/storage"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// SendReceiptOnce sends the delivery summary for one logical delivery at most
// once, ever. The ledger mark is persisted before the outbound send so a
// retry after a crash can only skip the receipt, never duplicate it. A failed
// ledger write suppresses the send for the same reason.
func (p *Pipeline) SendReceiptOnce(ctx context.Context, key string, chatID, sizeBytes int64, speedBps, durationS *float64) {
	already := false
	err := p.store.Update(func(d *state.Document) {
		if _, ok := d.DedupReceipts[key]; ok {
			already = true
			return
		}
		d.DedupReceipts[key] = p.now().UTC()
	})
	if already {
		return
	}
	if err != nil {
		p.log.Error("receipt ledger write failed, receipt suppressed",
			logx.String("key", key), logx.Err(err))
		return
	}

	in := energy.Input{TotalBytes: sizeBytes, Network: energy.NetworkAuto}
	if durationS != nil {
		in.DurationSeconds = *durationS
	}
	if p.rtt != nil {
		in.RTTMs = p.rtt.LastRTTMs()
	}
	report := p.model.Estimate(in)

	text := receiptText(sizeBytes, speedBps, durationS, report)

	var bumperText string
	if err := p.store.Update(func(d *state.Document) {
		if !d.Bumper.Active || strings.TrimSpace(d.Bumper.Text) == "" {
			return
		}
		bumperText = d.Bumper.Text
		d.Bumper.AddReach(chatID)
	}); err != nil {
		p.log.Error("state save failed on bumper reach", logx.Err(err))
	}
	if bumperText != "" {
		text += "\n\n" + bumperText
		if p.refreshControl != nil {
			p.refreshControl(ctx)
		}
	}

	if _, err := p.bot.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		p.log.Warn("receipt send failed", logx.String("key", key), logx.Err(err))
	}
	p.auditAppend(ctx, storage.Entry{
		At: p.now().UTC(), UserID: chatID, Kind: "receipt",
		Bytes: sizeBytes, DurationMS: durationMS(durationS),
		Outcome: "sent", Key: key,
	})
}

func receiptText(sizeBytes int64, speedBps, durationS *float64, report energy.Report) string {
	var b strings.Builder
	b.WriteString("Delivery summary:\n")
	fmt.Fprintf(&b, " - Size: %s\n", stats.FormatBytes(sizeBytes))
	fmt.Fprintf(&b, " - Speed: %s\n", stats.FormatSpeed(speedBps))
	if durationS != nil {
		fmt.Fprintf(&b, " - Duration: %.3fs\n", *durationS)
	} else {
		b.WriteString(" - Duration: unknown\n")
	}
	if report.HasDuration {
		fmt.Fprintf(&b, " - Energy (est.): %.2f J (~%.4f J/MB), network: %s", report.TotalJ, report.JPerMB, report.Network)
	} else {
		b.WriteString(" - Energy: a measured duration is needed for an estimate")
	}
	return b.String()
}
