package match

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/garnizeh/recruit/pkg/models"
)

var (
	ErrUnknownMatch      = errors.New("unknown match")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// StatusWriter persists a status change.
type StatusWriter interface {
	UpdateMatchStatus(ctx context.Context, id int64, status models.MatchStatus) error
}

// Board is a reviewer's local copy of a job's matches. Status changes are
// applied locally first and then written through; a failed write is reported
// and the local change stays.
type Board struct {
	mu      sync.RWMutex
	w       StatusWriter
	records []models.Match
}

func NewBoard(w StatusWriter, records []models.Match) *Board {
	return &Board{w: w, records: slices.Clone(records)}
}

func (b *Board) View(q Query) []models.Match {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Filter(b.records, q)
}

func (b *Board) Get(id int64) (models.Match, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := b.index(id)
	if i < 0 {
		return models.Match{}, false
	}
	return b.records[i], true
}

// SetStatus moves a match to a new status.
func (b *Board) SetStatus(ctx context.Context, id int64, to models.MatchStatus) error {
	b.mu.Lock()
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return ErrUnknownMatch
	}
	from := b.records[i].Status
	if !IsTransitionAllowed(from, to) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	b.records[i].Status = to
	b.mu.Unlock()

	if err := b.w.UpdateMatchStatus(ctx, id, to); err != nil {
		return fmt.Errorf("update match %d: %w", id, err)
	}
	return nil
}

func (b *Board) index(id int64) int {
	return slices.IndexFunc(b.records, func(m models.Match) bool { return m.ID == id })
}
