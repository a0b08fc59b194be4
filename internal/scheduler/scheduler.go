// Package scheduler runs periodic maintenance tasks such as purging expired
// verification codes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a named piece of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler wraps robfig/cron and runs the registered tasks.
type Scheduler struct {
	cron   *cron.Cron
	tasks  []Task
	logger *slog.Logger
}

func New(logger *slog.Logger, tasks ...Task) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		tasks:  tasks,
		logger: logger,
	}
}

// Start registers every task, runs each once so stale state is cleared
// without waiting for the first tick, and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, t := range s.tasks {
		if t.Interval < time.Second {
			return fmt.Errorf("task %s: interval must be at least 1s, got %v", t.Name, t.Interval)
		}
		t := t
		if _, err := s.cron.AddFunc("@every "+t.Interval.String(), func() { s.run(ctx, t) }); err != nil {
			return fmt.Errorf("cron.AddFunc %s: %w", t.Name, err)
		}
	}

	for _, t := range s.tasks {
		s.run(ctx, t)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
	return nil
}

// Stop halts the cron loop and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := t.Run(ctx); err != nil {
		s.logger.Error("scheduled task failed", slog.String("task", t.Name), slog.Any("err", err))
		return
	}
	s.logger.Debug("scheduled task done", slog.String("task", t.Name), slog.Duration("took", time.Since(start)))
}

// PurgeOTP returns the task that deletes expired verification codes.
func PurgeOTP(interval time.Duration, purge func(ctx context.Context) (int64, error), logger *slog.Logger) Task {
	if logger == nil {
		logger = slog.Default()
	}
	return Task{
		Name:     "otp.purge",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := purge(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("purged expired verification codes", slog.Int64("count", n))
			}
			return nil
		},
	}
}
