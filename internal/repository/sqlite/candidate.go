package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
)

const candidateColumns = `id, full_name, email, phone, resume_path, resume_mime, resume_size, created, updated`

func scanCandidate(s rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	if err := s.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.ResumePath, &c.ResumeMIME, &c.ResumeSize, &c.Created, &c.Updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLiteRepo) GetCandidate(ctx context.Context, id int64) (*models.Candidate, error) {
	c, err := scanCandidate(r.conn.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepo) GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	c, err := scanCandidate(r.conn.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// UpsertCandidate inserts the candidate or updates the row with the same
// email. An empty résumé path keeps the résumé already on file.
func (r *SQLiteRepo) UpsertCandidate(ctx context.Context, c *models.Candidate) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("candidate is nil")
	}

	ts := now()
	row := r.conn.QueryRow(ctx, `INSERT INTO candidates (full_name, email, phone, resume_path, resume_mime, resume_size, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			full_name = excluded.full_name,
			phone = excluded.phone,
			resume_path = CASE WHEN excluded.resume_path = '' THEN candidates.resume_path ELSE excluded.resume_path END,
			resume_mime = CASE WHEN excluded.resume_path = '' THEN candidates.resume_mime ELSE excluded.resume_mime END,
			resume_size = CASE WHEN excluded.resume_path = '' THEN candidates.resume_size ELSE excluded.resume_size END,
			updated = excluded.updated
		RETURNING id`,
		c.FullName, c.Email, c.Phone, c.ResumePath, c.ResumeMIME, c.ResumeSize, ts, ts)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	c.ID = id
	c.Updated = ts
	return id, nil
}
