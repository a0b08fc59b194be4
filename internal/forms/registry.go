package forms

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository"
)

// FormKeyDef is the editable part of a form key.
type FormKeyDef struct {
	Name       string   `json:"name"`
	FieldType  string   `json:"field_type"`
	Required   bool     `json:"required"`
	EnumValues []string `json:"enum_values"`
}

// Registry is the per-company catalog of form keys.
type Registry struct {
	repo repository.FormKeyRepo
	cons repository.ConstraintRepo
}

func NewRegistry(r repository.FormKeyRepo, cons repository.ConstraintRepo) *Registry {
	return &Registry{repo: r, cons: cons}
}

func (r *Registry) List(ctx context.Context, employerID int64) ([]models.FormKey, error) {
	keys, err := r.repo.ListFormKeys(ctx, employerID)
	if err != nil {
		return nil, fmt.Errorf("list form keys: %w", err)
	}
	return keys, nil
}

// Get returns a form key owned by employerID or ErrNotFound.
func (r *Registry) Get(ctx context.Context, employerID, id int64) (*models.FormKey, error) {
	fk, err := r.repo.GetFormKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get form key: %w", err)
	}
	if fk == nil || fk.EmployerID != employerID {
		return nil, ErrNotFound
	}
	return fk, nil
}

func (r *Registry) Create(ctx context.Context, employerID int64, def FormKeyDef) (*models.FormKey, error) {
	fk := &models.FormKey{EmployerID: employerID}
	if err := applyDef(fk, def); err != nil {
		return nil, err
	}
	id, err := r.repo.CreateFormKey(ctx, fk)
	if err != nil {
		return nil, fmt.Errorf("create form key: %w", err)
	}
	fk.ID = id
	return fk, nil
}

// Update replaces the definition of an existing form key and refits every
// constraint row that references it to the new definition.
func (r *Registry) Update(ctx context.Context, employerID, id int64, def FormKeyDef) (*models.FormKey, error) {
	fk, err := r.Get(ctx, employerID, id)
	if err != nil {
		return nil, err
	}
	if err := applyDef(fk, def); err != nil {
		return nil, err
	}

	rows, err := r.cons.ListConstraintsByFormKey(ctx, fk.ID)
	if err != nil {
		return nil, fmt.Errorf("list constraints of form key: %w", err)
	}
	var changed []models.JobFormKeyConstraint
	for _, row := range rows {
		c, err := Reconcile(*fk, row.Constraints)
		if err != nil {
			return nil, err
		}
		if !Equal(c, row.Constraints) {
			row.Constraints = c
			changed = append(changed, row)
		}
	}

	if err := r.repo.UpdateFormKey(ctx, fk); err != nil {
		return nil, fmt.Errorf("update form key: %w", err)
	}
	for _, row := range changed {
		if err := r.cons.UpdateConstraint(ctx, row.ID, row.Constraints); err != nil {
			return nil, fmt.Errorf("update constraint %d: %w", row.ID, err)
		}
	}
	return fk, nil
}

// Delete removes the form key together with every constraint row that
// references it.
func (r *Registry) Delete(ctx context.Context, employerID, id int64) error {
	if _, err := r.Get(ctx, employerID, id); err != nil {
		return err
	}
	if err := r.repo.DeleteFormKey(ctx, id); err != nil {
		return fmt.Errorf("delete form key: %w", err)
	}
	return nil
}

func applyDef(fk *models.FormKey, def FormKeyDef) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return invalid("name", "name is required")
	}
	if strings.TrimSpace(def.FieldType) == "" {
		return invalid("field_type", "field_type is required")
	}
	ft, err := ParseFieldType(def.FieldType)
	if err != nil {
		return invalid("field_type", "%s", err.Error())
	}

	fk.Name = name
	fk.FieldType = ft
	fk.Required = def.Required
	fk.EnumValues = nil
	if ft == models.FieldSelect {
		fk.EnumValues = enumValues(def.EnumValues)
	}
	return nil
}

// enumValues trims, drops blanks and dedupes while keeping the given order.
func enumValues(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
