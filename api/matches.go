package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/match"
	"github.com/garnizeh/recruit/pkg/models"
)

type MatchHandler struct {
	store Store
}

func NewMatchHandler(store Store) *MatchHandler {
	return &MatchHandler{store: store}
}

// List returns the job's matches filtered by min_score (0-100), status and
// q, in stable insertion order unless sort=score.
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "job_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	qs := r.URL.Query()
	q := match.Query{Status: qs.Get("status"), Search: qs.Get("q"), Sort: qs.Get("sort")}
	if s := qs.Get("min_score"); s != "" {
		if q.Threshold, err = strconv.ParseFloat(s, 64); err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be a number")
			return
		}
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := ownedJob(r.Context(), h.store, employerID(r), jobID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	all, err := h.store.ListMatchesByJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match.Filter(all, q))
}

// ownedMatch loads a match whose job belongs to the employer.
func (h *MatchHandler) ownedMatch(r *http.Request, id int64) (*models.Match, error) {
	m, err := h.store.GetMatch(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, match.ErrUnknownMatch
	}
	if _, err := ownedJob(r.Context(), h.store, employerID(r), m.JobID); err != nil {
		return nil, err
	}
	return m, nil
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *MatchHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	to, err := match.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.ownedMatch(r, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if m.Status != to {
		if !match.IsTransitionAllowed(m.Status, to) {
			writeError(w, http.StatusConflict, "Cannot move a "+string(m.Status)+" match to "+string(to))
			return
		}
		if err := h.store.UpdateMatchStatus(r.Context(), id, to); err != nil {
			writeServiceError(w, r, err)
			return
		}
		m.Status = to
	}
	writeJSON(w, http.StatusOK, m)
}

type scoreRequest struct {
	Score *float64 `json:"score" validate:"required"`
}

// UpdateScore stores the score computed by the external scorer.
func (h *MatchHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req scoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if s := *req.Score; math.IsNaN(s) || s < 0 || s > 1 {
		writeServiceError(w, r, &forms.ValidationError{Field: "score", Message: "score must be between 0 and 1"})
		return
	}

	m, err := h.ownedMatch(r, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.store.UpdateMatchScore(r.Context(), id, *req.Score); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m.Score = *req.Score
	writeJSON(w, http.StatusOK, m)
}
