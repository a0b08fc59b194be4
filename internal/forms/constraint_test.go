package forms_test

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recruitdb "github.com/garnizeh/recruit/db"
	"github.com/garnizeh/recruit/internal/forms"
	"github.com/garnizeh/recruit/pkg/models"
	"github.com/garnizeh/recruit/pkg/repository/mock"
)

func TestClean_StripsVacuousValues(t *testing.T) {
	got := forms.Clean(models.Constraints{
		"min_value":        nil,
		"pattern":          "   ",
		"required_options": []any{},
		"max_value":        0.0,
		"expected_state":   false,
	})
	assert.Equal(t, models.Constraints{"max_value": 0.0, "expected_state": false}, got)
}

func TestSanitize(t *testing.T) {
	selectKey := models.FormKey{ID: 1, Name: "Level", FieldType: models.FieldSelect, EnumValues: []string{"A", "B", "C"}}

	cases := []struct {
		name    string
		fk      models.FormKey
		in      models.Constraints
		want    models.Constraints
		wantErr string
	}{
		{
			name: "NumberDropsUnknownKeys",
			fk:   models.FormKey{Name: "Years", FieldType: models.FieldNumber},
			in:   models.Constraints{"min_value": 5.0, "max_value": "10", "pattern": "x", "bogus": 1},
			want: models.Constraints{"min_value": 5.0, "max_value": 10.0},
		},
		{
			name:    "NumberMinAboveMax",
			fk:      models.FormKey{Name: "Years", FieldType: models.FieldNumber},
			in:      models.Constraints{"min_value": 11, "max_value": 10},
			wantErr: "min_value must not exceed max_value",
		},
		{
			name:    "DateOrder",
			fk:      models.FormKey{Name: "Start", FieldType: models.FieldDate},
			in:      models.Constraints{"after_date": "2025-02-01", "before_date": "2025-01-01"},
			wantErr: "after_date must be earlier than before_date",
		},
		{
			name: "SelectReordersToEnumOrder",
			fk:   selectKey,
			in:   models.Constraints{"required_options": []any{"C", "A"}},
			want: models.Constraints{"required_options": []string{"A", "C"}},
		},
		{
			name:    "SelectOutsideEnum",
			fk:      selectKey,
			in:      models.Constraints{"required_options": []any{"D"}},
			wantErr: `required option "D"`,
		},
		{
			name: "CheckboxNullMeansAny",
			fk:   models.FormKey{Name: "Relocate", FieldType: models.FieldCheckbox},
			in:   models.Constraints{"expected_state": nil},
			want: models.Constraints{},
		},
		{
			name: "LinkDomainIsBare",
			fk:   models.FormKey{Name: "Portfolio", FieldType: models.FieldLink},
			in:   models.Constraints{"allowed_domain": "https://www.GitHub.com/"},
			want: models.Constraints{"allowed_domain": "github.com"},
		},
		{
			name:    "TextBadRegex",
			fk:      models.FormKey{Name: "Code", FieldType: models.FieldText},
			in:      models.Constraints{"pattern": "([a-z"},
			wantErr: "invalid pattern",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := forms.Sanitize(tc.fk, tc.in)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, forms.ErrValidation))
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConstraintKeys_ClosedPerFieldType(t *testing.T) {
	want := map[models.FieldType][]string{
		models.FieldNumber:   {forms.KeyMinValue, forms.KeyMaxValue},
		models.FieldText:     {forms.KeyPattern},
		models.FieldTextarea: {forms.KeyPattern},
		models.FieldDate:     {forms.KeyAfterDate, forms.KeyBeforeDate},
		models.FieldSelect:   {forms.KeyRequiredOptions},
		models.FieldCheckbox: {forms.KeyExpectedState},
		models.FieldLink:     {forms.KeyAllowedDomain},
	}
	for _, ft := range models.FieldTypes {
		assert.Equal(t, want[ft], forms.ConstraintKeys(ft), ft)
	}
}

func seededLoader(t *testing.T) *forms.SchemaLoader {
	t.Helper()
	store := mock.NewStore()
	ctx := context.Background()
	entries, err := fs.ReadDir(recruitdb.SeedFiles, "seed")
	require.NoError(t, err)
	for _, e := range entries {
		b, err := fs.ReadFile(recruitdb.SeedFiles, path.Join("seed", e.Name()))
		require.NoError(t, err)
		ft := strings.TrimSuffix(strings.TrimPrefix(e.Name(), "constraint_"), ".json")
		require.NoError(t, store.UpsertConstraintSchema(ctx, models.FieldType(ft), string(b)))
	}
	l, err := forms.NewSchemaLoader(ctx, store)
	require.NoError(t, err)
	return l
}

func TestSchemaLoader_Validate(t *testing.T) {
	l := seededLoader(t)
	ctx := context.Background()

	for _, ft := range models.FieldTypes {
		_, ok := l.Schema(ft)
		assert.True(t, ok, "schema for %s", ft)
	}

	num := models.FormKey{Name: "Years", FieldType: models.FieldNumber}
	assert.NoError(t, l.Validate(ctx, num, models.Constraints{"min_value": 1.0}))

	err := l.Validate(ctx, num, models.Constraints{"min_value": "one"})
	require.Error(t, err)
	assert.ErrorIs(t, err, forms.ErrValidation)

	sel := models.FormKey{Name: "Level", FieldType: models.FieldSelect}
	assert.Error(t, l.Validate(ctx, sel, models.Constraints{"required_options": []string{"A", "A"}}))
}

func TestSchemaLoader_NilPasses(t *testing.T) {
	var l *forms.SchemaLoader
	assert.NoError(t, l.Validate(context.Background(), models.FormKey{FieldType: models.FieldNumber}, models.Constraints{"min_value": "x"}))
}

func TestSchemaLoader_BadSchemaKeepsCache(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertConstraintSchema(ctx, models.FieldNumber, `{"type":"object"}`))
	l, err := forms.NewSchemaLoader(ctx, store)
	require.NoError(t, err)

	require.NoError(t, store.UpsertConstraintSchema(ctx, models.FieldDate, `{not json`))
	assert.Error(t, l.Reload(ctx))
	_, ok := l.Schema(models.FieldNumber)
	assert.True(t, ok)
}

func TestHintsAndCount(t *testing.T) {
	fk := models.FormKey{Name: "Years", FieldType: models.FieldNumber}
	c := models.Constraints{"min_value": 5.0, "max_value": 10.0}
	assert.Equal(t, []string{"Between 5 and 10"}, forms.Hints(fk, c))
	assert.Equal(t, 2, forms.Count(fk, c))
	assert.Equal(t, 0, forms.Count(fk, models.Constraints{"pattern": "x"}))
}
