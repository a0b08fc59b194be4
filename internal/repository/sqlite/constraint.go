package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
)

const constraintSelect = `SELECT id, job_id, form_key_id, constraints FROM job_form_key_constraints`

// ListConstraintsByJob returns the job's constraint rows in selection order.
func (r *SQLiteRepo) ListConstraintsByJob(ctx context.Context, jobID int64) ([]models.JobFormKeyConstraint, error) {
	return r.listConstraints(ctx, constraintSelect+` WHERE job_id = ? ORDER BY id`, jobID)
}

func (r *SQLiteRepo) ListConstraintsByFormKey(ctx context.Context, formKeyID int64) ([]models.JobFormKeyConstraint, error) {
	return r.listConstraints(ctx, constraintSelect+` WHERE form_key_id = ? ORDER BY id`, formKeyID)
}

func (r *SQLiteRepo) UpdateConstraint(ctx context.Context, id int64, c models.Constraints) error {
	if c == nil {
		c = models.Constraints{}
	}
	s, err := encodeJSON(c)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, `UPDATE job_form_key_constraints SET constraints = ? WHERE id = ?`, s, id)
	return err
}

func (r *SQLiteRepo) listConstraints(ctx context.Context, query string, arg int64) ([]models.JobFormKeyConstraint, error) {
	rows, err := r.conn.QueryRows(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobFormKeyConstraint
	for rows.Next() {
		var c models.JobFormKeyConstraint
		var raw string
		if err := rows.Scan(&c.ID, &c.JobID, &c.FormKeyID, &raw); err != nil {
			return nil, err
		}
		c.Constraints = models.Constraints{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &c.Constraints); err != nil {
				return nil, fmt.Errorf("decode constraints %d: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceConstraints swaps the job's rows for set inside one transaction.
func (r *SQLiteRepo) ReplaceConstraints(ctx context.Context, jobID int64, set []models.JobFormKeyConstraint) error {
	encoded := make([]string, len(set))
	for i, c := range set {
		if c.Constraints == nil {
			c.Constraints = models.Constraints{}
		}
		s, err := encodeJSON(c.Constraints)
		if err != nil {
			return err
		}
		encoded[i] = s
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_form_key_constraints WHERE job_id = ?`, jobID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, c := range set {
		if _, err := tx.ExecContext(ctx, `INSERT INTO job_form_key_constraints (job_id, form_key_id, constraints) VALUES (?, ?, ?)`, jobID, c.FormKeyID, encoded[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert constraint for form key %d: %w", c.FormKeyID, err)
		}
	}
	return tx.Commit()
}
