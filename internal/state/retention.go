package state

import (
	"sort"
	"time"

	logx "gatebot/pkg/logx"
)

// hourlyPrune is the light pass: history age + per-user cap, stale album
// buffers, and (when configured) expired pending prompts.
//
// Records with a zero timestamp are kept: an unparseable or missing timestamp
// is not a reason to lose data.
func (s *Store) hourlyPrune(d *Document, now time.Time) {
	cutoff := now.Add(-s.ret.HistoryMaxAge)
	dropped := 0
	for uid, entries := range d.History {
		pruned := entries[:0]
		for _, rec := range entries {
			if rec.Timestamp.IsZero() || !rec.Timestamp.Before(cutoff) {
				pruned = append(pruned, rec)
			} else {
				dropped++
			}
		}
		if len(pruned) > s.ret.HistoryMaxPerUser {
			dropped += len(pruned) - s.ret.HistoryMaxPerUser
			pruned = pruned[len(pruned)-s.ret.HistoryMaxPerUser:]
		}
		if len(pruned) == 0 {
			delete(d.History, uid)
			continue
		}
		d.History[uid] = append([]DeliveryRecord(nil), pruned...)
	}

	groupCutoff := now.Add(-s.ret.MediaGroupMaxAge)
	for gid, items := range d.MediaGroups {
		if newest := newestItem(items); !newest.IsZero() && newest.Before(groupCutoff) {
			delete(d.MediaGroups, gid)
		}
	}

	if s.ret.PendingMaxAge > 0 {
		pendingCutoff := now.Add(-s.ret.PendingMaxAge)
		for id, p := range d.Pending {
			if !p.CreatedAt.IsZero() && p.CreatedAt.Before(pendingCutoff) {
				delete(d.Pending, id)
			}
		}
	}

	if dropped > 0 {
		s.log.Debug("hourly prune dropped history entries", logx.Int("count", dropped))
	}
}

// weeklyPrune is the deep pass: least-active user eviction, ledger and
// forwarded-trail age trims, and bumper reach truncation.
func (s *Store) weeklyPrune(d *Document, now time.Time) {
	if len(d.History) > s.ret.MaxTrackedUsers {
		type userLoad struct {
			uid string
			n   int
		}
		loads := make([]userLoad, 0, len(d.History))
		for uid, entries := range d.History {
			loads = append(loads, userLoad{uid, len(entries)})
		}
		// Fewest entries evicted first; ties broken by uid for determinism.
		sort.Slice(loads, func(i, j int) bool {
			if loads[i].n != loads[j].n {
				return loads[i].n < loads[j].n
			}
			return loads[i].uid < loads[j].uid
		})
		evict := len(loads) - s.ret.MaxTrackedUsers
		for _, l := range loads[:evict] {
			delete(d.History, l.uid)
		}
		s.log.Info("weekly prune evicted least-active users", logx.Int("count", evict))
	}

	cutoff := now.Add(-s.ret.LedgerMaxAge)
	for key, at := range d.DedupReceipts {
		if !at.IsZero() && at.Before(cutoff) {
			delete(d.DedupReceipts, key)
		}
	}
	for gid, trail := range d.MediaGroupsForwarded {
		if !trail.UpdatedAt.IsZero() && trail.UpdatedAt.Before(cutoff) {
			delete(d.MediaGroupsForwarded, gid)
		}
	}

	if len(d.Bumper.ReachUserIDs) > s.ret.ReachCap {
		d.Bumper.ReachUserIDs = append([]int64(nil),
			d.Bumper.ReachUserIDs[len(d.Bumper.ReachUserIDs)-s.ret.ReachCap:]...)
	}
}

func newestItem(items []MediaItem) time.Time {
	var newest time.Time
	for _, it := range items {
		if it.SentAt.After(newest) {
			newest = it.SentAt
		}
	}
	return newest
}
