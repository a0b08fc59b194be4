package api

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/pkg/models"
)

// FormSettings tell the public form how the candidate side validates.
type FormSettings struct {
	EnforceConstraints bool  `json:"enforce_constraints"`
	PDFOnly            bool  `json:"pdf_only"`
	MaxResumeBytes     int64 `json:"max_resume_bytes"`
}

type JobsHandler struct {
	store    Store
	cons     *forms.ConstraintService
	settings FormSettings
}

func NewJobsHandler(store Store, cons *forms.ConstraintService, settings FormSettings) *JobsHandler {
	return &JobsHandler{store: store, cons: cons, settings: settings}
}

type jobRequest struct {
	Title       string                   `json:"title" validate:"required"`
	Description string                   `json:"description"`
	Location    string                   `json:"location"`
	Status      string                   `json:"status" validate:"omitempty,oneof=open closed"`
	FormKeys    []models.ConstraintInput `json:"form_keys"`
}

type jobPatch struct {
	Title       *string                   `json:"title"`
	Description *string                   `json:"description"`
	Location    *string                   `json:"location"`
	Status      *string                   `json:"status" validate:"omitempty,oneof=open closed"`
	FormKeys    *[]models.ConstraintInput `json:"form_keys"`
}

type jobResponse struct {
	models.Job
	FormKeys []constraintRow `json:"form_keys"`
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListJobs(r.Context(), employerID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create stores the job and its constraint set. The constraints are checked
// before anything is written.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()
	emp := employerID(r)

	set, err := h.cons.Prepare(ctx, emp, req.FormKeys)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	j := &models.Job{
		EmployerID:  emp,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		Status:      models.JobStatus(req.Status),
	}
	if j.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if j.Status == "" {
		j.Status = models.JobOpen
	}
	id, err := h.store.CreateJob(ctx, j)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	j.ID = id
	for i := range set {
		set[i].JobID = id
	}
	if err := h.store.ReplaceConstraints(ctx, id, set); err != nil {
		writeServiceError(w, r, fmt.Errorf("store constraints of job %d: %w", id, err))
		return
	}
	writeJSON(w, http.StatusCreated, jobResponse{Job: *j, FormKeys: toRows(set)})
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	j, err := ownedJob(r.Context(), h.store, employerID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	set, err := h.store.ListConstraintsByJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: *j, FormKeys: toRows(set)})
}

func (h *JobsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req jobPatch
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()
	emp := employerID(r)
	j, err := ownedJob(ctx, h.store, emp, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var set []models.JobFormKeyConstraint
	if req.FormKeys != nil {
		if set, err = h.cons.Prepare(ctx, emp, *req.FormKeys); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		j.Title = t
	}
	if req.Description != nil {
		j.Description = *req.Description
	}
	if req.Location != nil {
		j.Location = *req.Location
	}
	if req.Status != nil {
		j.Status = models.JobStatus(*req.Status)
	}
	if err := h.store.UpdateJob(ctx, j); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.FormKeys != nil {
		if err := h.store.ReplaceConstraints(ctx, id, set); err != nil {
			writeServiceError(w, r, err)
			return
		}
	} else if set, err = h.store.ListConstraintsByJob(ctx, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: *j, FormKeys: toRows(set)})
}

func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := ownedJob(r.Context(), h.store, employerID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publicJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
}

type publicFormField struct {
	models.FormKey
	Constraints models.Constraints `json:"constraints"`
}

// PublicFormData is the unauthenticated payload of the application page.
type PublicFormData struct {
	Job      publicJob         `json:"job"`
	FormKeys []publicFormField `json:"form_keys"`
	Controls []forms.Control   `json:"controls"`
	Settings FormSettings      `json:"settings"`
}

// PublicFormData loads the job and its form concurrently. Closed and unknown
// jobs are both reported as not found.
func (h *JobsHandler) PublicFormData(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "job_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var (
		job  *models.Job
		keys []models.FormKey
		cons map[int64]models.Constraints
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		job, err = h.store.GetJob(ctx, jobID)
		return err
	})
	g.Go(func() error {
		var err error
		keys, cons, err = h.cons.FormFor(ctx, jobID)
		return err
	})
	if err := g.Wait(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if job == nil || job.Status != models.JobOpen {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	resp := PublicFormData{
		Job:      publicJob{ID: job.ID, Title: job.Title, Description: job.Description, Location: job.Location},
		FormKeys: make([]publicFormField, 0, len(keys)),
		Controls: forms.Render(keys, cons),
		Settings: h.settings,
	}
	for _, fk := range keys {
		c := cons[fk.ID]
		if c == nil {
			c = models.Constraints{}
		}
		resp.FormKeys = append(resp.FormKeys, publicFormField{FormKey: fk, Constraints: c})
	}
	writeJSON(w, http.StatusOK, resp)
}
