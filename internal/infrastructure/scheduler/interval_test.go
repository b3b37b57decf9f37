package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewIntervalScheduler(10*time.Millisecond, time.UTC)
	if err := s.Start(context.Background(), func(time.Time) { runs.Add(1) }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job ran after Stop")
	}
}

func TestIntervalSchedulerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour, nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start returned error: %v", err)
	}
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start with nil job returned error: %v", err)
	}

	started := make(chan time.Time, 1)
	if err := s.Start(context.Background(), func(t time.Time) { started <- t }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	select {
	case trigger := <-started:
		if trigger.Location() != time.UTC {
			t.Fatalf("expected UTC trigger, got %v", trigger.Location())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not run immediately")
	}
	_ = s.Stop(context.Background())
	_ = s.Stop(context.Background())
}
