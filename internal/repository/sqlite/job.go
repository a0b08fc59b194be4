package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
)

const jobColumns = `id, employer_id, title, description, location, status, created, updated`

func scanJob(s rowScanner) (*models.Job, error) {
	var j models.Job
	if err := s.Scan(&j.ID, &j.EmployerID, &j.Title, &j.Description, &j.Location, &j.Status, &j.Created, &j.Updated); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}
	if j.Status == "" {
		j.Status = models.JobOpen
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO job_postings (employer_id, title, description, location, status, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.EmployerID, j.Title, j.Description, j.Location, j.Status, ts, ts)
	if err != nil {
		return 0, err
	}
	j.Created, j.Updated = ts, ts
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	j, err := scanJob(r.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM job_postings WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

func (r *SQLiteRepo) ListJobs(ctx context.Context, employerID int64) ([]models.Job, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+jobColumns+` FROM job_postings WHERE employer_id = ? ORDER BY id`, employerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateJob(ctx context.Context, j *models.Job) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}

	j.Updated = now()
	_, err := r.conn.Exec(ctx, `UPDATE job_postings SET title = ?, description = ?, location = ?, status = ?, updated = ? WHERE id = ?`,
		j.Title, j.Description, j.Location, j.Status, j.Updated, j.ID)
	return err
}

// DeleteJob removes the posting together with its constraint rows.
func (r *SQLiteRepo) DeleteJob(ctx context.Context, id int64) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_form_key_constraints WHERE job_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_postings WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
