package sqlite

import (
	"context"

	"github.com/garnizeh/recruit/pkg/models"
)

// UpsertConstraintSchema inserts or updates the schema of a field type.
func (r *SQLiteRepo) UpsertConstraintSchema(ctx context.Context, fieldType models.FieldType, schemaJSON string) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO constraint_schemas (field_type, schema_json, updated) VALUES (?, ?, ?) ON CONFLICT(field_type) DO UPDATE SET schema_json=excluded.schema_json, updated=excluded.updated`, fieldType, schemaJSON, now())
	return err
}

func (r *SQLiteRepo) ListConstraintSchemas(ctx context.Context) ([]models.ConstraintSchema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, field_type, schema_json, updated FROM constraint_schemas ORDER BY field_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ConstraintSchema
	for rows.Next() {
		var s models.ConstraintSchema
		if err := rows.Scan(&s.ID, &s.FieldType, &s.SchemaJSON, &s.Updated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
