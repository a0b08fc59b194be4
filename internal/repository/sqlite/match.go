package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
)

const matchSelect = `SELECT m.id, m.job_id, m.candidate_id, COALESCE(c.full_name, ''), COALESCE(c.email, ''), m.score, m.satisfied_constraints, m.total_constraints, m.status, m.created, m.updated
	FROM matches m LEFT JOIN candidates c ON c.id = m.candidate_id`

func scanMatch(s rowScanner) (*models.Match, error) {
	var m models.Match
	if err := s.Scan(&m.ID, &m.JobID, &m.CandidateID, &m.CandidateName, &m.CandidateEmail, &m.Score,
		&m.SatisfiedConstraints, &m.TotalConstraints, &m.Status, &m.Created, &m.Updated); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *SQLiteRepo) CreateMatch(ctx context.Context, m *models.Match) (int64, error) {
	if m == nil {
		return 0, fmt.Errorf("match is nil")
	}
	if m.Status == "" {
		m.Status = models.MatchPending
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO matches (job_id, candidate_id, score, satisfied_constraints, total_constraints, status, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.JobID, m.CandidateID, m.Score, m.SatisfiedConstraints, m.TotalConstraints, m.Status, ts, ts)
	if err != nil {
		return 0, err
	}
	m.Created, m.Updated = ts, ts
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetMatch(ctx context.Context, id int64) (*models.Match, error) {
	m, err := scanMatch(r.conn.QueryRow(ctx, matchSelect+` WHERE m.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// ListMatchesByJob returns the job's matches in insertion order.
func (r *SQLiteRepo) ListMatchesByJob(ctx context.Context, jobID int64) ([]models.Match, error) {
	rows, err := r.conn.QueryRows(ctx, matchSelect+` WHERE m.job_id = ? ORDER BY m.id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateMatchStatus(ctx context.Context, id int64, status models.MatchStatus) error {
	_, err := r.conn.Exec(ctx, `UPDATE matches SET status = ?, updated = ? WHERE id = ?`, status, now(), id)
	return err
}

func (r *SQLiteRepo) UpdateMatchScore(ctx context.Context, id int64, score float64) error {
	_, err := r.conn.Exec(ctx, `UPDATE matches SET score = ?, updated = ? WHERE id = ?`, score, now(), id)
	return err
}
