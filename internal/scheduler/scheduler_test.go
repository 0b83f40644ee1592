package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "gatebot/pkg/logx"
)

func TestClockToCron(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"09:05", "5 9 * * *"},
		{"0:00", "0 0 * * *"},
		{"23:59", "59 23 * * *"},
		{" 21:00 ", "0 21 * * *"},
	}
	for _, tc := range cases {
		got, err := clockToCron(tc.in)
		if err != nil {
			t.Errorf("clockToCron(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("clockToCron(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "12:5:1x"} {
		if _, err := clockToCron(bad); err == nil {
			t.Errorf("clockToCron(%q) accepted invalid input", bad)
		}
	}
}

func TestRunOnceFires(t *testing.T) {
	s := New(logx.Nop(), "")
	s.Start(context.Background())
	defer s.Stop(context.Background())

	done := make(chan struct{})
	s.RunOnce("test", time.Millisecond, func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
}

func TestRunOnceBeforeStartIsIgnored(t *testing.T) {
	s := New(logx.Nop(), "")
	var fired atomic.Bool
	s.RunOnce("test", 0, func(ctx context.Context) { fired.Store(true) })
	time.Sleep(20 * time.Millisecond)
	if fired.Load() {
		t.Error("task ran on a stopped scheduler")
	}
}

func TestPanickingTaskIsRecovered(t *testing.T) {
	s := New(logx.Nop(), "")
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.RunOnce("boom", 0, func(ctx context.Context) { panic("boom") })

	// Stop waits for the goroutine, so a leaked panic would fail the test
	// process rather than this assertion.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRepeatingTaskSurvivesPanic(t *testing.T) {
	s := New(logx.Nop(), "")
	s.Start(context.Background())
	defer s.Stop(context.Background())

	var ticks atomic.Int32
	s.RunRepeating("flaky", 5*time.Millisecond, 0, func(ctx context.Context) {
		if ticks.Add(1) == 1 {
			panic("first tick fails")
		}
	})

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("ticks = %d, want the loop to continue past the panic", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRepeatingRejectsNonPositiveInterval(t *testing.T) {
	s := New(logx.Nop(), "")
	s.Start(context.Background())
	defer s.Stop(context.Background())

	var fired atomic.Bool
	s.RunRepeating("bad", 0, 0, func(ctx context.Context) { fired.Store(true) })
	time.Sleep(20 * time.Millisecond)
	if fired.Load() {
		t.Error("task with zero interval ran")
	}
}

func TestStopWaitsForTasks(t *testing.T) {
	s := New(logx.Nop(), "")
	s.Start(context.Background())

	started := make(chan struct{})
	var finished atomic.Bool
	s.RunOnce("slow", 0, func(ctx context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !finished.Load() {
		t.Error("Stop returned before the running task finished")
	}
}

func TestRunDailyRequiresStart(t *testing.T) {
	s := New(logx.Nop(), "")
	if err := s.RunDaily("daily", "09:00", func(ctx context.Context) {}); err == nil {
		t.Error("RunDaily on a stopped scheduler must fail")
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())
	if err := s.RunDaily("daily", "09:00", func(ctx context.Context) {}); err != nil {
		t.Errorf("RunDaily: %v", err)
	}
	if err := s.RunDaily("daily", "9am", func(ctx context.Context) {}); err == nil {
		t.Error("RunDaily accepted an invalid clock time")
	}
}
