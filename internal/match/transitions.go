// Package match filters externally scored candidate matches for display and
// guards their review status.
//
// Valid status graph:
//
//	pending ──► contacted ──► accepted
//	   │            │
//	   │            └────────► rejected
//	   ├─────────────────────► accepted
//	   └─────────────────────► rejected
//
// accepted and rejected are terminal states.
package match

import (
	"fmt"
	"slices"
	"strings"

	"github.com/garnizeh/recruit/pkg/models"
)

var validTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchPending:   {models.MatchContacted, models.MatchAccepted, models.MatchRejected},
	models.MatchContacted: {models.MatchAccepted, models.MatchRejected},
}

// ParseStatus converts a raw string to a MatchStatus, returning an error for
// unknown values.
func ParseStatus(s string) (models.MatchStatus, error) {
	st := models.MatchStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case models.MatchPending, models.MatchContacted, models.MatchAccepted, models.MatchRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown match status %q", s)
}

// IsTransitionAllowed returns true when moving from -> to is permitted.
func IsTransitionAllowed(from, to models.MatchStatus) bool {
	return slices.Contains(validTransitions[from], to)
}

func IsTerminal(s models.MatchStatus) bool {
	return s == models.MatchAccepted || s == models.MatchRejected
}
