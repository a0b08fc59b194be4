package api

import (
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/internal/notify"
	"github.com/garnizeh/recruit/internal/otp"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

const msgAlreadyApplied = "You have already applied to this job"

type ApplicationHandler struct {
	store     Store
	cons      *forms.ConstraintService
	otp       *otp.Service
	queue     otp.Enqueuer
	validator *forms.Validator
}

func NewApplicationHandler(store Store, cons *forms.ConstraintService, svc *otp.Service, queue otp.Enqueuer, v *forms.Validator) *ApplicationHandler {
	return &ApplicationHandler{store: store, cons: cons, otp: svc, queue: queue, validator: v}
}

type applicationRequest struct {
	JobID       int64            `json:"job_id" validate:"gt=0"`
	CandidateID int64            `json:"candidate_id" validate:"gt=0"`
	Responses   models.Responses `json:"responses"`
}

type applicationResponse struct {
	ApplicationID        int64   `json:"application_id"`
	MatchID              int64   `json:"match_id"`
	Score                float64 `json:"score"`
	SatisfiedConstraints int     `json:"satisfied_constraints"`
	TotalConstraints     int     `json:"total_constraints"`
}

// Create validates the responses against the job's form and stores the
// application together with its pending match. A candidate created by the
// first submission step stays in place when this step fails.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()

	cand, err := h.store.GetCandidate(ctx, req.CandidateID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if cand == nil {
		writeError(w, http.StatusNotFound, "Candidate not found")
		return
	}
	if err := requireVerified(h.otp, r, cand.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	job, err := h.store.GetJob(ctx, req.JobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.Status != models.JobOpen {
		writeServiceError(w, r, errClosedJob)
		return
	}

	prev, err := h.store.GetApplicationByJobAndCandidate(ctx, job.ID, cand.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if prev != nil {
		writeError(w, http.StatusConflict, msgAlreadyApplied)
		return
	}

	keys, cons, err := h.cons.FormFor(ctx, job.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Responses == nil {
		req.Responses = models.Responses{}
	}
	if err := h.validator.ValidateResponses(keys, cons, req.Responses); err != nil {
		writeServiceError(w, r, err)
		return
	}

	// keep only answers to the job's form
	answers := make(models.Responses, len(keys))
	for _, fk := range keys {
		if v, ok := req.Responses[fk.ID]; ok {
			answers[fk.ID] = v
		}
	}

	satisfied, total := forms.Evaluate(keys, cons, answers)
	m := &models.Match{
		Score:                initialScore(satisfied, total),
		SatisfiedConstraints: satisfied,
		TotalConstraints:     total,
		Status:               models.MatchPending,
	}
	appID, matchID, err := h.store.CreateApplicationWithMatch(ctx, &models.Application{JobID: job.ID, CandidateID: cand.ID, Responses: answers}, m)
	if errors.Is(err, repository.ErrDuplicate) {
		writeError(w, http.StatusConflict, msgAlreadyApplied)
		return
	}
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("create application: %w", err))
		return
	}

	if h.queue != nil {
		payload := notify.ApplicationPayload{
			ApplicationID:        appID,
			MatchID:              matchID,
			JobID:                job.ID,
			JobTitle:             job.Title,
			CandidateName:        cand.FullName,
			CandidateEmail:       cand.Email,
			SatisfiedConstraints: satisfied,
			TotalConstraints:     total,
		}
		if _, err := h.queue.Enqueue(ctx, notify.JobApplicationNotify, payload, 50, 0); err != nil {
			logger.Error("enqueue application notification", slog.Int64("application_id", appID), slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusCreated, applicationResponse{
		ApplicationID:        appID,
		MatchID:              matchID,
		Score:                m.Score,
		SatisfiedConstraints: satisfied,
		TotalConstraints:     total,
	})
}

// initialScore is the satisfied share of constraints until an external scorer
// pushes its own value. A form without constraints scores 1.
func initialScore(satisfied, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(satisfied) / float64(total)
}
