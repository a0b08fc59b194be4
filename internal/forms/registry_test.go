package forms_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository/mock"
)

func TestRegistry_CreateValidates(t *testing.T) {
	store := mock.NewStore()
	reg := forms.NewRegistry(store, store)
	ctx := context.Background()

	cases := []struct {
		name string
		def  forms.FormKeyDef
	}{
		{"MissingName", forms.FormKeyDef{FieldType: "text"}},
		{"MissingType", forms.FormKeyDef{Name: "Bio"}},
		{"UnknownType", forms.FormKeyDef{Name: "Bio", FieldType: "rich"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Create(ctx, 1, tc.def)
			var ve *forms.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestRegistry_EnumValuesOnlyForSelect(t *testing.T) {
	store := mock.NewStore()
	reg := forms.NewRegistry(store, store)
	ctx := context.Background()

	sel, err := reg.Create(ctx, 1, forms.FormKeyDef{Name: " Level ", FieldType: "SELECT", EnumValues: []string{"B", " A", "B", ""}})
	require.NoError(t, err)
	assert.Equal(t, "Level", sel.Name)
	assert.Equal(t, models.FieldSelect, sel.FieldType)
	assert.Equal(t, []string{"B", "A"}, sel.EnumValues)

	txt, err := reg.Create(ctx, 1, forms.FormKeyDef{Name: "Bio", FieldType: "text", EnumValues: []string{"x"}})
	require.NoError(t, err)
	assert.Nil(t, txt.EnumValues)
}

func TestRegistry_Ownership(t *testing.T) {
	store := mock.NewStore()
	reg := forms.NewRegistry(store, store)
	ctx := context.Background()

	fk, err := reg.Create(ctx, 1, forms.FormKeyDef{Name: "Bio", FieldType: "text"})
	require.NoError(t, err)

	_, err = reg.Update(ctx, 2, fk.ID, forms.FormKeyDef{Name: "Other", FieldType: "text"})
	assert.ErrorIs(t, err, forms.ErrNotFound)
	assert.ErrorIs(t, reg.Delete(ctx, 2, fk.ID), forms.ErrNotFound)

	list, err := reg.List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	updated, err := reg.Update(ctx, 1, fk.ID, forms.FormKeyDef{Name: "Summary", FieldType: "textarea", Required: true})
	require.NoError(t, err)
	assert.Equal(t, models.FieldTextarea, updated.FieldType)
	assert.True(t, updated.Required)
}

func TestRegistry_UpdateRefitsConstraints(t *testing.T) {
	store := mock.NewStore()
	reg := forms.NewRegistry(store, store)
	svc := forms.NewConstraintService(store, store, nil)
	ctx := context.Background()

	level, err := reg.Create(ctx, 1, forms.FormKeyDef{Name: "Level", FieldType: "select", EnumValues: []string{"A", "B", "C"}})
	require.NoError(t, err)
	_, err = svc.SetForJob(ctx, 1, 10, []models.ConstraintInput{{FormKeyID: level.ID, Constraints: models.Constraints{"required_options": []any{"A", "C"}}}})
	require.NoError(t, err)
	_, err = svc.SetForJob(ctx, 1, 11, []models.ConstraintInput{{FormKeyID: level.ID, Constraints: models.Constraints{"required_options": []any{"C"}}}})
	require.NoError(t, err)

	// shrinking the values drops the options that are gone
	_, err = reg.Update(ctx, 1, level.ID, forms.FormKeyDef{Name: "Level", FieldType: "select", EnumValues: []string{"A", "B"}})
	require.NoError(t, err)

	got, err := svc.GetForJob(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.Constraints{"required_options": []string{"A"}}, got[level.ID])
	got, err = svc.GetForJob(ctx, 11)
	require.NoError(t, err)
	assert.Empty(t, got[level.ID])

	// the stored set can be saved again as it is
	stored, err := svc.GetForJob(ctx, 10)
	require.NoError(t, err)
	_, err = svc.SetForJob(ctx, 1, 10, []models.ConstraintInput{{FormKeyID: level.ID, Constraints: stored[level.ID]}})
	require.NoError(t, err)

	// a new field type keeps none of the old keys
	_, err = reg.Update(ctx, 1, level.ID, forms.FormKeyDef{Name: "Level", FieldType: "number"})
	require.NoError(t, err)
	got, err = svc.GetForJob(ctx, 10)
	require.NoError(t, err)
	require.Contains(t, got, level.ID)
	assert.Empty(t, got[level.ID])
}

func TestRegistry_DeleteRemovesConstraints(t *testing.T) {
	store := mock.NewStore()
	reg := forms.NewRegistry(store, store)
	svc := forms.NewConstraintService(store, store, nil)
	ctx := context.Background()

	fk, err := reg.Create(ctx, 1, forms.FormKeyDef{Name: "Years", FieldType: "number"})
	require.NoError(t, err)
	_, err = svc.SetForJob(ctx, 1, 100, []models.ConstraintInput{{FormKeyID: fk.ID, Constraints: models.Constraints{"min_value": 1}}})
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, 1, fk.ID))
	got, err := svc.GetForJob(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConstraintService_SetForJob(t *testing.T) {
	store := mock.NewStore()
	reg := forms.NewRegistry(store, store)
	svc := forms.NewConstraintService(store, store, seededLoader(t))
	ctx := context.Background()

	years, err := reg.Create(ctx, 1, forms.FormKeyDef{Name: "Years", FieldType: "number"})
	require.NoError(t, err)
	level, err := reg.Create(ctx, 1, forms.FormKeyDef{Name: "Level", FieldType: "select", EnumValues: []string{"A", "B", "C"}})
	require.NoError(t, err)
	foreign, err := reg.Create(ctx, 2, forms.FormKeyDef{Name: "Theirs", FieldType: "text"})
	require.NoError(t, err)

	set, err := svc.SetForJob(ctx, 1, 7, []models.ConstraintInput{
		{FormKeyID: years.ID, Constraints: models.Constraints{"min_value": 5, "max_value": 10, "pattern": "x", "junk": nil}},
		{FormKeyID: level.ID, Constraints: models.Constraints{"required_options": []any{"C", "A"}}},
	})
	require.NoError(t, err)
	require.Len(t, set, 2)

	got, err := svc.GetForJob(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.Constraints{"min_value": 5.0, "max_value": 10.0}, got[years.ID])
	assert.Equal(t, models.Constraints{"required_options": []string{"A", "C"}}, got[level.ID])

	keys, cons, err := svc.FormFor(ctx, 7)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, years.ID, keys[0].ID)
	assert.Len(t, cons, 2)

	_, err = svc.SetForJob(ctx, 1, 7, []models.ConstraintInput{{FormKeyID: years.ID}, {FormKeyID: years.ID}})
	assert.ErrorIs(t, err, forms.ErrValidation)

	_, err = svc.SetForJob(ctx, 1, 7, []models.ConstraintInput{{FormKeyID: foreign.ID}})
	assert.ErrorIs(t, err, forms.ErrValidation)

	_, err = svc.SetForJob(ctx, 1, 7, []models.ConstraintInput{{FormKeyID: years.ID, Constraints: models.Constraints{"min_value": 11, "max_value": 10}}})
	assert.ErrorIs(t, err, forms.ErrValidation)

	// failed writes leave the stored set alone
	got, err = svc.GetForJob(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
