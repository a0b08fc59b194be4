package match_test

import (
	"context"
	"errors"
	"testing"

	"github.com/garnizeh/recruit/internal/match"
	"github.com/garnizeh/recruit/pkg/models"
)

// transitions

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "contacted", "accepted", "rejected", " Accepted "} {
		if _, err := match.ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
	}
	for _, s := range []string{"", "hired", "all"} {
		if _, err := match.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

func TestIsTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to models.MatchStatus
		want     bool
	}{
		{models.MatchPending, models.MatchContacted, true},
		{models.MatchPending, models.MatchAccepted, true},
		{models.MatchPending, models.MatchRejected, true},
		{models.MatchContacted, models.MatchAccepted, true},
		{models.MatchContacted, models.MatchRejected, true},
		{models.MatchContacted, models.MatchPending, false},
		{models.MatchPending, models.MatchPending, false},
		{models.MatchAccepted, models.MatchRejected, false},
		{models.MatchRejected, models.MatchContacted, false},
	}
	for _, tc := range cases {
		if got := match.IsTransitionAllowed(tc.from, tc.to); got != tc.want {
			t.Errorf("IsTransitionAllowed(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if !match.IsTerminal(models.MatchAccepted) || !match.IsTerminal(models.MatchRejected) || match.IsTerminal(models.MatchPending) {
		t.Error("IsTerminal mismatch")
	}
}

// filter

var records = []models.Match{
	{ID: 1, CandidateName: "Ana Lima", CandidateEmail: "ana@example.com", Score: 0.79, Status: models.MatchPending},
	{ID: 2, CandidateName: "Bruno Dias", CandidateEmail: "bruno@corp.io", Score: 0.80, Status: models.MatchContacted},
	{ID: 3, CandidateName: "Carla Reis", CandidateEmail: "carla@example.com", Score: 0.95, Status: models.MatchPending},
	{ID: 4, CandidateName: "Davi Melo", CandidateEmail: "davi@example.com", Score: 0.80, Status: models.MatchRejected},
}

func ids(ms []models.Match) []int64 {
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilter(t *testing.T) {
	cases := []struct {
		name string
		q    match.Query
		want []int64
	}{
		{"ThresholdBoundary", match.Query{Threshold: 80}, []int64{2, 3, 4}},
		{"ZeroKeepsAll", match.Query{}, []int64{1, 2, 3, 4}},
		{"StatusAll", match.Query{Status: "all"}, []int64{1, 2, 3, 4}},
		{"Status", match.Query{Status: "pending"}, []int64{1, 3}},
		{"SearchName", match.Query{Search: "CARLA"}, []int64{3}},
		{"SearchEmail", match.Query{Search: "corp.io"}, []int64{2}},
		{"Combined", match.Query{Threshold: 80, Status: "pending", Search: "example"}, []int64{3}},
		{"SortScoreStable", match.Query{Sort: match.SortScore}, []int64{3, 2, 4, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(match.Filter(records, tc.q))
			if !equalIDs(got, tc.want) {
				t.Fatalf("Filter(%+v) = %v, want %v", tc.q, got, tc.want)
			}
		})
	}
}

func TestMeetsThreshold(t *testing.T) {
	if match.MeetsThreshold(0.79, 80) {
		t.Error("0.79 must not pass 80")
	}
	if !match.MeetsThreshold(0.80, 80) {
		t.Error("0.80 must pass 80")
	}
	if !match.MeetsThreshold(0.7, 70) || !match.MeetsThreshold(0.29, 29) {
		t.Error("float noise must not break equality")
	}
}

func TestQueryValidate(t *testing.T) {
	bad := []match.Query{{Threshold: -1}, {Threshold: 101}, {Status: "hired"}, {Sort: "name"}}
	for _, q := range bad {
		if err := q.Validate(); err == nil {
			t.Errorf("Validate(%+v) expected error", q)
		}
	}
	if err := (match.Query{Threshold: 50, Status: "all", Sort: "score"}).Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// board

type writer struct {
	calls int
	err   error
}

func (w *writer) UpdateMatchStatus(ctx context.Context, id int64, status models.MatchStatus) error {
	w.calls++
	return w.err
}

func TestBoard_SetStatus(t *testing.T) {
	w := &writer{}
	b := match.NewBoard(w, records)
	ctx := context.Background()

	if err := b.SetStatus(ctx, 1, models.MatchContacted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if m, _ := b.Get(1); m.Status != models.MatchContacted {
		t.Fatalf("status = %s, want contacted", m.Status)
	}
	if records[0].Status != models.MatchPending {
		t.Fatal("board must not modify its input")
	}

	if err := b.SetStatus(ctx, 4, models.MatchAccepted); !errors.Is(err, match.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := b.SetStatus(ctx, 99, models.MatchAccepted); !errors.Is(err, match.ErrUnknownMatch) {
		t.Fatalf("expected ErrUnknownMatch, got %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("writer calls = %d, want 1", w.calls)
	}
}

func TestBoard_FailedWriteKeepsLocalChange(t *testing.T) {
	boom := errors.New("boom")
	b := match.NewBoard(&writer{err: boom}, records)

	err := b.SetStatus(context.Background(), 3, models.MatchAccepted)
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if m, _ := b.Get(3); m.Status != models.MatchAccepted {
		t.Fatalf("status = %s, want accepted", m.Status)
	}
	if got := ids(b.View(match.Query{Status: "accepted"})); !equalIDs(got, []int64{3}) {
		t.Fatalf("View = %v", got)
	}
}
