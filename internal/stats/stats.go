// Package stats computes the descriptive statistics shown in submission
// headers and the control-chat status report. Nothing here influences
// routing decisions.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gatebot/internal/state"
)

// Summary describes one series of observations.
type Summary struct {
	Count  int
	Sum    float64
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Stdev  float64
	MAD    float64 // median absolute deviation
	P25    float64
	P75    float64
}

// HistorySummary aggregates a user's delivery history: byte sizes, delivery
// durations, and finite speeds.
type HistorySummary struct {
	Sizes  Summary
	Times  Summary
	Speeds Summary
}

// Summarize packs a user's history into per-series summaries. Infinite
// speeds (zero-duration deliveries) are excluded from the speed series.
func Summarize(entries []state.DeliveryRecord) HistorySummary {
	sizes := make([]float64, 0, len(entries))
	times := make([]float64, 0, len(entries))
	speeds := make([]float64, 0, len(entries))
	for _, e := range entries {
		sizes = append(sizes, float64(e.Bytes))
		if e.DeliverySeconds != nil {
			times = append(times, *e.DeliverySeconds)
		}
		if e.SpeedBps != nil && !math.IsInf(*e.SpeedBps, 0) {
			speeds = append(speeds, *e.SpeedBps)
		}
	}
	return HistorySummary{Sizes: Pack(sizes), Times: Pack(times), Speeds: Pack(speeds)}
}

// Pack computes the summary of one series. An empty series yields Count=0.
func Pack(arr []float64) Summary {
	if len(arr) == 0 {
		return Summary{}
	}
	s := append([]float64(nil), arr...)
	sort.Float64s(s)

	var sum float64
	for _, v := range s {
		sum += v
	}
	mean := sum / float64(len(s))
	med := median(s)

	var stdev float64
	if len(s) > 1 {
		var sq float64
		for _, v := range s {
			d := v - mean
			sq += d * d
		}
		stdev = math.Sqrt(sq / float64(len(s)-1))
	}

	dev := make([]float64, len(s))
	for i, v := range s {
		dev[i] = math.Abs(v - med)
	}
	sort.Float64s(dev)

	return Summary{
		Count:  len(s),
		Sum:    sum,
		Mean:   mean,
		Median: med,
		Min:    s[0],
		Max:    s[len(s)-1],
		Stdev:  stdev,
		MAD:    median(dev),
		P25:    Percentile(s, 0.25),
		P75:    Percentile(s, 0.75),
	}
}

// median expects a sorted slice.
func median(s []float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Percentile interpolates the q-th quantile (0..1) of a sorted slice.
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	k := float64(len(sorted)-1) * q
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
}

// FormatBytes renders a byte count in B/KB/MB.
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	kb := float64(b) / 1024
	if kb < 1024 {
		return fmt.Sprintf("%.1f KB", kb)
	}
	return fmt.Sprintf("%.2f MB", kb/1024)
}

// FormatSpeed renders bytes/second as MB/s plus Mbit/s.
func FormatSpeed(bps *float64) string {
	if bps == nil {
		return "unknown"
	}
	if math.IsInf(*bps, 0) {
		return "inf"
	}
	mbs := *bps / (1024 * 1024)
	mbits := (*bps * 8) / (1024 * 1024)
	return fmt.Sprintf("%.3f MB/s (%.3f Mbit/s)", mbs, mbits)
}
