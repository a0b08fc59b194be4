package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
)

const formKeyColumns = `id, employer_id, name, field_type, required, enum_values, created, updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFormKey(s rowScanner) (*models.FormKey, error) {
	var fk models.FormKey
	var enum sql.NullString
	if err := s.Scan(&fk.ID, &fk.EmployerID, &fk.Name, &fk.FieldType, &fk.Required, &enum, &fk.Created, &fk.Updated); err != nil {
		return nil, err
	}
	if enum.Valid && enum.String != "" {
		if err := json.Unmarshal([]byte(enum.String), &fk.EnumValues); err != nil {
			return nil, fmt.Errorf("decode enum_values of form key %d: %w", fk.ID, err)
		}
	}
	return &fk, nil
}

func enumColumn(values []string) (any, error) {
	if values == nil {
		return nil, nil
	}
	return encodeJSON(values)
}

func (r *SQLiteRepo) ListFormKeys(ctx context.Context, employerID int64) ([]models.FormKey, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+formKeyColumns+` FROM form_keys WHERE employer_id = ? ORDER BY id`, employerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FormKey
	for rows.Next() {
		fk, err := scanFormKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fk)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) GetFormKey(ctx context.Context, id int64) (*models.FormKey, error) {
	fk, err := scanFormKey(r.conn.QueryRow(ctx, `SELECT `+formKeyColumns+` FROM form_keys WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return fk, nil
}

func (r *SQLiteRepo) CreateFormKey(ctx context.Context, fk *models.FormKey) (int64, error) {
	if fk == nil {
		return 0, fmt.Errorf("form key is nil")
	}
	enum, err := enumColumn(fk.EnumValues)
	if err != nil {
		return 0, err
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO form_keys (employer_id, name, field_type, required, enum_values, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fk.EmployerID, fk.Name, fk.FieldType, fk.Required, enum, ts, ts)
	if err != nil {
		return 0, err
	}
	fk.Created, fk.Updated = ts, ts
	return res.LastInsertId()
}

func (r *SQLiteRepo) UpdateFormKey(ctx context.Context, fk *models.FormKey) error {
	if fk == nil {
		return fmt.Errorf("form key is nil")
	}
	enum, err := enumColumn(fk.EnumValues)
	if err != nil {
		return err
	}

	fk.Updated = now()
	_, err = r.conn.Exec(ctx, `UPDATE form_keys SET name = ?, field_type = ?, required = ?, enum_values = ?, updated = ? WHERE id = ?`,
		fk.Name, fk.FieldType, fk.Required, enum, fk.Updated, fk.ID)
	return err
}

// DeleteFormKey removes the form key and every constraint row referencing it.
func (r *SQLiteRepo) DeleteFormKey(ctx context.Context, id int64) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_form_key_constraints WHERE form_key_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM form_keys WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
