package forms

import (
	"context"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

// ConstraintService reads and bulk-replaces the constraint sets of a job.
type ConstraintService struct {
	keys    repository.FormKeyRepo
	store   repository.ConstraintRepo
	schemas *SchemaLoader
}

// NewConstraintService builds the service. schemas may be nil, in which case
// only the semantic checks run.
func NewConstraintService(keys repository.FormKeyRepo, store repository.ConstraintRepo, schemas *SchemaLoader) *ConstraintService {
	return &ConstraintService{keys: keys, store: store, schemas: schemas}
}

// GetForJob returns the constraints of a job keyed by form key id.
func (s *ConstraintService) GetForJob(ctx context.Context, jobID int64) (map[int64]models.Constraints, error) {
	rows, err := s.store.ListConstraintsByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list constraints: %w", err)
	}
	out := make(map[int64]models.Constraints, len(rows))
	for _, r := range rows {
		c := r.Constraints
		if c == nil {
			c = models.Constraints{}
		}
		out[r.FormKeyID] = c
	}
	return out, nil
}

// SetForJob sanitizes every entry and replaces the job's constraint rows with
// the result. Nothing is written when any entry is rejected.
func (s *ConstraintService) SetForJob(ctx context.Context, employerID, jobID int64, in []models.ConstraintInput) ([]models.JobFormKeyConstraint, error) {
	set, err := s.Prepare(ctx, employerID, in)
	if err != nil {
		return nil, err
	}
	for i := range set {
		set[i].JobID = jobID
	}
	if err := s.store.ReplaceConstraints(ctx, jobID, set); err != nil {
		return nil, fmt.Errorf("replace constraints: %w", err)
	}
	return set, nil
}

// Prepare validates a bulk request without persisting it.
func (s *ConstraintService) Prepare(ctx context.Context, employerID int64, in []models.ConstraintInput) ([]models.JobFormKeyConstraint, error) {
	seen := make(map[int64]bool, len(in))
	set := make([]models.JobFormKeyConstraint, 0, len(in))
	for _, e := range in {
		if seen[e.FormKeyID] {
			return nil, invalid("form_keys", "form key %d listed more than once", e.FormKeyID)
		}
		seen[e.FormKeyID] = true

		fk, err := s.keys.GetFormKey(ctx, e.FormKeyID)
		if err != nil {
			return nil, fmt.Errorf("get form key: %w", err)
		}
		if fk == nil || fk.EmployerID != employerID {
			return nil, invalid("form_keys", "unknown form key %d", e.FormKeyID)
		}

		c, err := Sanitize(*fk, e.Constraints)
		if err != nil {
			return nil, err
		}
		if err := s.schemas.Validate(ctx, *fk, c); err != nil {
			return nil, err
		}
		set = append(set, models.JobFormKeyConstraint{FormKeyID: fk.ID, Constraints: c})
	}
	return set, nil
}

// FormFor loads the selected form keys of a job in selection order together
// with their constraints.
func (s *ConstraintService) FormFor(ctx context.Context, jobID int64) ([]models.FormKey, map[int64]models.Constraints, error) {
	rows, err := s.store.ListConstraintsByJob(ctx, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("list constraints: %w", err)
	}
	keys := make([]models.FormKey, 0, len(rows))
	cons := make(map[int64]models.Constraints, len(rows))
	for _, r := range rows {
		fk, err := s.keys.GetFormKey(ctx, r.FormKeyID)
		if err != nil {
			return nil, nil, fmt.Errorf("get form key: %w", err)
		}
		if fk == nil {
			continue
		}
		keys = append(keys, *fk)
		cons[fk.ID] = r.Constraints
	}
	return keys, cons, nil
}
