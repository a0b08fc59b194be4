package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/garnizeh/recruit/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartRunsTasksImmediatelyAndOnTick(t *testing.T) {
	var runs atomic.Int32
	task := scheduler.Task{Name: "count", Interval: time.Second, Run: func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}}

	s := scheduler.New(nil, task)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if got := runs.Load(); got != 1 {
		t.Fatalf("expected one immediate run, got %d", got)
	}

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatalf("task did not run on tick")
	}
}

func TestStartRejectsShortInterval(t *testing.T) {
	s := scheduler.New(nil, scheduler.Task{Name: "fast", Interval: 10 * time.Millisecond, Run: func(context.Context) error { return nil }})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error for sub-second interval")
	}
}

func TestPurgeOTP(t *testing.T) {
	var calls int
	task := scheduler.PurgeOTP(time.Minute, func(ctx context.Context) (int64, error) {
		calls++
		return 3, nil
	}, nil)
	if task.Name != "otp.purge" || task.Interval != time.Minute {
		t.Fatalf("unexpected task: %+v", task)
	}
	if err := task.Run(context.Background()); err != nil || calls != 1 {
		t.Fatalf("Run: calls=%d err=%v", calls, err)
	}

	failing := scheduler.PurgeOTP(time.Minute, func(ctx context.Context) (int64, error) {
		return 0, errors.New("db locked")
	}, nil)
	if err := failing.Run(context.Background()); err == nil {
		t.Fatalf("expected purge error to surface")
	}
}

func TestFailingTaskDoesNotStopScheduler(t *testing.T) {
	s := scheduler.New(nil, scheduler.Task{Name: "boom", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("boom")
	}})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
