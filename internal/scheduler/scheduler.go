// Package scheduler provides the bot's deferred-task primitives: run once
// after a delay, run repeating on an interval, and run at a clock time every
// day. Tasks are plain goroutines owned by the service context; a panicking
// task is logged and discarded, and a repeating task survives a panicking
// tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "gatebot/pkg/logx"
)

type Service struct {
	log logx.Logger
	loc *time.Location

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	c       *cron.Cron
	started bool
}

func New(log logx.Logger, timezone string) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Warn("invalid scheduler timezone, using UTC", logx.String("tz", tz))
		}
	}
	return &Service{log: log, loc: loc}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithLocation(s.loc))
	s.c.Start()
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	c := s.c
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce schedules fn once after delay. The task is never retried; a panic
// is logged and swallowed.
func (s *Service) RunOnce(name string, delay time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s.safeCall(ctx, name, fn)
	}()
}

// RunRepeating schedules fn every interval, first firing after first.
// A tick that panics is logged; the loop continues to the next tick.
func (s *Service) RunRepeating(name string, interval, first time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		s.log.Warn("repeating task with non-positive interval ignored", logx.String("task", name))
		return
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if first > 0 {
			t := time.NewTimer(first)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.safeCall(ctx, name, fn)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// RunDaily schedules fn every day at the given local clock time ("HH:MM").
func (s *Service) RunDaily(name, clock string, fn func(ctx context.Context)) error {
	spec, err := clockToCron(clock)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.New("scheduler not started")
	}
	ctx := s.ctx
	_, err = s.c.AddFunc(spec, func() {
		s.safeCall(ctx, name, fn)
	})
	return err
}

func (s *Service) safeCall(ctx context.Context, name string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked",
				logx.String("task", name), logx.Any("panic", r))
		}
	}()
	fn(ctx)
}

// clockToCron converts "HH:MM" to a daily cron spec.
func clockToCron(clock string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid clock time %q (want HH:MM)", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("invalid hour in %q", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("invalid minute in %q", clock)
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}
