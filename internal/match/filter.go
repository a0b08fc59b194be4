package match

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/garnizeh/recruit/pkg/models"
)

const (
	StatusAll = "all"
	SortScore = "score"
)

// Query selects the matches shown to a reviewer.
type Query struct {
	// Threshold is the minimum score in percent, 0 to 100.
	Threshold float64
	// Status keeps one status; empty or "all" keeps every status.
	Status string
	// Search is a case-insensitive substring of the candidate name or email.
	Search string
	// Sort orders by descending score when "score"; otherwise input order.
	Sort string
}

// Validate checks the query ranges and values.
func (q Query) Validate() error {
	if math.IsNaN(q.Threshold) || q.Threshold < 0 || q.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100")
	}
	if q.Status != "" && q.Status != StatusAll {
		if _, err := ParseStatus(q.Status); err != nil {
			return err
		}
	}
	if q.Sort != "" && q.Sort != SortScore {
		return fmt.Errorf("unknown sort %q", q.Sort)
	}
	return nil
}

// MeetsThreshold compares in basis points so that 0.80 passes 80 exactly.
func MeetsThreshold(score, threshold float64) bool {
	return math.Round(score*10000) >= math.Round(threshold*100)
}

// Filter returns the matches selected by q. The input is not modified and
// equal scores keep their input order.
func Filter(records []models.Match, q Query) []models.Match {
	status := strings.ToLower(strings.TrimSpace(q.Status))
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Match, 0, len(records))
	for _, m := range records {
		if !MeetsThreshold(m.Score, q.Threshold) {
			continue
		}
		if status != "" && status != StatusAll && string(m.Status) != status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(m.CandidateName), needle) &&
			!strings.Contains(strings.ToLower(m.CandidateEmail), needle) {
			continue
		}
		out = append(out, m)
	}

	if q.Sort == SortScore {
		slices.SortStableFunc(out, func(a, b models.Match) int {
			switch {
			case a.Score > b.Score:
				return -1
			case a.Score < b.Score:
				return 1
			}
			return 0
		})
	}
	return out
}
