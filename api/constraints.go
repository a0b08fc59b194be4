package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

type ConstraintHandler struct {
	svc     *forms.ConstraintService
	jobs    repository.JobRepo
	keys    repository.FormKeyRepo
	variant forms.Variant
}

func NewConstraintHandler(svc *forms.ConstraintService, jobs repository.JobRepo, keys repository.FormKeyRepo, variant forms.Variant) *ConstraintHandler {
	return &ConstraintHandler{svc: svc, jobs: jobs, keys: keys, variant: variant}
}

// ownedJob loads a job of the employer or reports forms.ErrNotFound.
func ownedJob(ctx context.Context, jobs repository.JobRepo, employerID, jobID int64) (*models.Job, error) {
	j, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if j == nil || j.EmployerID != employerID {
		return nil, forms.ErrNotFound
	}
	return j, nil
}

type constraintRow struct {
	FormKeyID   int64              `json:"form_key_id"`
	Constraints models.Constraints `json:"constraints"`
}

func toRows(set []models.JobFormKeyConstraint) []constraintRow {
	out := make([]constraintRow, 0, len(set))
	for _, c := range set {
		cons := c.Constraints
		if cons == nil {
			cons = models.Constraints{}
		}
		out = append(out, constraintRow{FormKeyID: c.FormKeyID, Constraints: cons})
	}
	return out
}

// GetByJob returns the job's constraints keyed by form key id.
func (h *ConstraintHandler) GetByJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "job_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := ownedJob(r.Context(), h.jobs, employerID(r), jobID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := h.svc.GetForJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SetByJob bulk replaces the job's constraint set.
func (h *ConstraintHandler) SetByJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "job_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var in []models.ConstraintInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	emp := employerID(r)
	if _, err := ownedJob(r.Context(), h.jobs, emp, jobID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	set, err := h.svc.SetForJob(r.Context(), emp, jobID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRows(set))
}

type editorEntry struct {
	FormKeyID int64             `json:"form_key_id"`
	Name      string            `json:"name"`
	FieldType models.FieldType  `json:"field_type"`
	Selected  bool              `json:"selected"`
	View      *forms.EditorView `json:"view,omitempty"`
}

type editorResponse struct {
	JobID   int64         `json:"job_id"`
	Variant forms.Variant `json:"variant"`
	Entries []editorEntry `json:"entries"`
}

// loadEditor builds the constraint editor of an employer's job.
func (h *ConstraintHandler) loadEditor(ctx context.Context, emp, jobID int64) (*forms.Editor, []models.FormKey, error) {
	if _, err := ownedJob(ctx, h.jobs, emp, jobID); err != nil {
		return nil, nil, err
	}
	keys, err := h.keys.ListFormKeys(ctx, emp)
	if err != nil {
		return nil, nil, err
	}
	existing, err := h.svc.GetForJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return forms.NewEditor(h.variant, keys, existing), keys, nil
}

func (h *ConstraintHandler) editorState(jobID int64, ed *forms.Editor, keys []models.FormKey) (editorResponse, error) {
	resp := editorResponse{JobID: jobID, Variant: h.variant, Entries: make([]editorEntry, 0, len(keys))}
	for _, fk := range keys {
		e := editorEntry{FormKeyID: fk.ID, Name: fk.Name, FieldType: fk.FieldType, Selected: ed.IsSelected(fk.ID)}
		if e.Selected {
			v, err := ed.View(fk.ID)
			if err != nil {
				return editorResponse{}, err
			}
			e.View = &v
		}
		resp.Entries = append(resp.Entries, e)
	}
	return resp, nil
}

// Editor returns the constraint editor state of a job: every form key of the
// employer, and for the selected ones the pre-populated inputs.
func (h *ConstraintHandler) Editor(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "job_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	ed, keys, err := h.loadEditor(r.Context(), employerID(r), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp, err := h.editorState(jobID, ed, keys)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Editor operations.
const (
	editToggle       = "toggle"
	editSet          = "set"
	editToggleOption = "toggle_option"
)

type editorEdit struct {
	Op        string `json:"op" validate:"required,oneof=toggle set toggle_option"`
	FormKeyID int64  `json:"form_key_id" validate:"gt=0"`
	Key       string `json:"key,omitempty"`
	Value     any    `json:"value,omitempty"`
	Option    string `json:"option,omitempty"`
}

type editorRequest struct {
	Edits []editorEdit `json:"edits" validate:"required,min=1,dive"`
}

// Edit applies a batch of editor operations in order and saves the resulting
// constraint set when it differs from the stored one. A failing operation
// rejects the whole batch.
func (h *ConstraintHandler) Edit(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "job_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req editorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()
	emp := employerID(r)
	ed, keys, err := h.loadEditor(ctx, emp, jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	for _, e := range req.Edits {
		var err error
		switch e.Op {
		case editToggle:
			_, err = ed.Toggle(e.FormKeyID)
		case editSet:
			err = ed.Set(e.FormKeyID, e.Key, e.Value)
		case editToggleOption:
			err = ed.ToggleOption(e.FormKeyID, e.Option)
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	if ed.Dirty() {
		if _, err := h.svc.SetForJob(ctx, emp, jobID, ed.Payload()); err != nil {
			writeServiceError(w, r, err)
			return
		}
		// reload so the response shows the sanitized values
		if ed, keys, err = h.loadEditor(ctx, emp, jobID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	resp, err := h.editorState(jobID, ed, keys)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
