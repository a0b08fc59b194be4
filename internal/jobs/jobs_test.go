package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"log/slog"

	dbfs "github.com/garnizeh/recruit/db"
	"github.com/garnizeh/recruit/internal/db"
	"github.com/garnizeh/recruit/internal/jobs"
	"github.com/garnizeh/recruit/internal/repository/sqlite"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository/mock"
)

func TestEnqueueAndProcess(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	d, err := db.New(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer d.Close()
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := sqlite.New(d, logger)
	handled := make(chan string, 1)
	handlers := map[string]jobs.Handler{
		"test": func(ctx context.Context, j *models.BackgroundJob) error {
			var p map[string]string
			if err := jobs.Decode(j, &p); err != nil {
				return err
			}
			handled <- p["foo"]
			return nil
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, logger, 1)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case got := <-handled:
		if got != "bar" {
			t.Fatalf("unexpected payload value %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func runPool(t *testing.T, store *mock.Store, handlers map[string]jobs.Handler) func() {
	t.Helper()
	pool := jobs.NewWorkerPool(store, handlers, nil, 2)
	pool.SetPollInterval(5 * time.Millisecond)
	pool.Start(context.Background())
	return pool.Stop
}

func TestWorkerMarksJobDone(t *testing.T) {
	store := mock.NewStore()
	stop := runPool(t, store, map[string]jobs.Handler{
		"ok": func(ctx context.Context, j *models.BackgroundJob) error { return nil },
	})
	defer stop()

	if _, err := jobs.Enqueue(context.Background(), store, "ok", struct{}{}, 1, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, func() bool {
		q := store.QueuedJobs()
		return len(q) == 1 && q[0].Status == jobs.StatusDone
	})
}

func TestWorkerSchedulesRetry(t *testing.T) {
	store := mock.NewStore()
	stop := runPool(t, store, map[string]jobs.Handler{
		"flaky": func(ctx context.Context, j *models.BackgroundJob) error { return errors.New("smtp down") },
	})
	defer stop()

	if _, err := jobs.Enqueue(context.Background(), store, "flaky", struct{}{}, 1, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, func() bool {
		q := store.QueuedJobs()
		return len(q) == 1 && q[0].Status == jobs.StatusRetry
	})

	j := store.QueuedJobs()[0]
	if j.Attempts != 1 || j.LastError != "smtp down" {
		t.Fatalf("unexpected retry state: %#v", j)
	}
	if j.NextTryAt == nil || j.NextTryAt.Before(time.Now()) {
		t.Fatalf("expected a future retry time, got %v", j.NextTryAt)
	}
}

func TestWorkerDeadLetters(t *testing.T) {
	store := mock.NewStore()
	stop := runPool(t, store, map[string]jobs.Handler{
		"bad": func(ctx context.Context, j *models.BackgroundJob) error {
			var v int
			return jobs.Decode(j, &v)
		},
		"last": func(ctx context.Context, j *models.BackgroundJob) error { return errors.New("boom") },
		"panics": func(ctx context.Context, j *models.BackgroundJob) error {
			panic("nil map")
		},
	})
	defer stop()

	ctx := context.Background()
	for _, typ := range []string{"bad", "unknown"} {
		if _, err := jobs.Enqueue(ctx, store, typ, "not a number", 1, 5); err != nil {
			t.Fatalf("enqueue %s: %v", typ, err)
		}
	}
	for _, typ := range []string{"last", "panics"} {
		if _, err := jobs.Enqueue(ctx, store, typ, struct{}{}, 1, 1); err != nil {
			t.Fatalf("enqueue %s: %v", typ, err)
		}
	}

	waitFor(t, func() bool { return len(store.DeadLetters()) == 4 })
	for _, j := range store.DeadLetters() {
		if j.Status != jobs.StatusFailed || j.LastError == "" {
			t.Fatalf("unexpected dead letter: %#v", j)
		}
	}
	if q := store.QueuedJobs(); len(q) != 0 {
		t.Fatalf("expected empty queue, got %d jobs", len(q))
	}
}

func TestBackoffDuration(t *testing.T) {
	cases := map[int]time.Duration{
		0:   time.Second,
		1:   2 * time.Second,
		3:   8 * time.Second,
		9:   5 * time.Minute,
		100: 5 * time.Minute,
	}
	for attempt, want := range cases {
		if got := jobs.BackoffDuration(attempt); got != want {
			t.Fatalf("BackoffDuration(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	pool := jobs.NewWorkerPool(mock.NewStore(), nil, nil, 1)
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()
}

func TestPoolMaxAttempts(t *testing.T) {
	store := mock.NewStore()
	pool := jobs.NewWorkerPool(store, nil, slog.Default(), 1)
	ctx := context.Background()

	if _, err := pool.Enqueue(ctx, "mail", struct{}{}, 1, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pool.SetMaxAttempts(7)
	if _, err := pool.Enqueue(ctx, "mail", struct{}{}, 1, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := pool.Enqueue(ctx, "mail", struct{}{}, 1, 2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	q := store.QueuedJobs()
	if len(q) != 3 {
		t.Fatalf("expected 3 queued jobs, got %d", len(q))
	}
	want := []int{jobs.DefaultMaxAttempts, 7, 2}
	for i, j := range q {
		if j.MaxAttempts != want[i] {
			t.Fatalf("job %d: max attempts %d, want %d", i, j.MaxAttempts, want[i])
		}
	}
}
