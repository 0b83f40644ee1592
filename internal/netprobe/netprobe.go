// Package netprobe measures the network round-trip time on a schedule. The
// latest measurement feeds the handshake term of receipt energy estimates;
// everything else about a probe run is discarded.
package netprobe

import (
	"context"
	"math"
	"sort"
	"sync/atomic"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"

	"gatebot/internal/scheduler"
	logx "gatebot/pkg/logx"
)

// DefaultInterval is how often the probe runs when unconfigured.
const DefaultInterval = 15 * time.Minute

// candidateServers is how many nearest servers are pinged per run.
const candidateServers = 3

type Service struct {
	log      logx.Logger
	interval time.Duration

	// lastRTT holds math.Float64bits of the latest RTT in milliseconds.
	lastRTT atomic.Uint64
}

func New(interval time.Duration, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{log: log, interval: interval}
}

// Start registers the repeating probe. The first run fires immediately.
func (s *Service) Start(sched *scheduler.Service) {
	sched.RunRepeating("netprobe", s.interval, 0, s.probe)
}

// LastRTTMs returns the latest measured RTT in milliseconds, or 0 when no
// probe has succeeded yet.
func (s *Service) LastRTTMs() float64 {
	return math.Float64frombits(s.lastRTT.Load())
}

func (s *Service) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	client := st.New()
	servers, err := client.FetchServerListContext(ctx)
	if err != nil {
		s.log.Warn("netprobe server list fetch failed", logx.Err(err))
		return
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		s.log.Warn("netprobe found no servers")
		return
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })
	n := candidateServers
	if n > len(servers) {
		n = len(servers)
	}

	best := time.Duration(0)
	for _, srv := range servers[:n] {
		if ctx.Err() != nil {
			return
		}
		if err := srv.PingTestContext(ctx, nil); err != nil {
			continue
		}
		if srv.Latency <= 0 {
			continue
		}
		if best == 0 || srv.Latency < best {
			best = srv.Latency
		}
	}
	if best == 0 {
		s.log.Warn("netprobe: all pings failed")
		return
	}

	ms := float64(best) / float64(time.Millisecond)
	s.lastRTT.Store(math.Float64bits(ms))
	s.log.Debug("netprobe measured rtt", logx.Float64("rtt_ms", ms))
}
