package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
)

// CreateApplicationWithMatch inserts the application and its match in one
// transaction.
func (r *SQLiteRepo) CreateApplicationWithMatch(ctx context.Context, a *models.Application, m *models.Match) (int64, int64, error) {
	if a == nil || m == nil {
		return 0, 0, fmt.Errorf("application and match are required")
	}
	responses, err := encodeJSON(a.Responses)
	if err != nil {
		return 0, 0, err
	}
	if m.Status == "" {
		m.Status = models.MatchPending
	}
	ts := now()

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO applications (job_id, candidate_id, responses, created) VALUES (?, ?, ?, ?)`,
		a.JobID, a.CandidateID, responses, ts)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, duplicate("insert application", err)
	}
	appID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, err
	}
	res, err = tx.ExecContext(ctx, `INSERT INTO matches (job_id, candidate_id, score, satisfied_constraints, total_constraints, status, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.JobID, a.CandidateID, m.Score, m.SatisfiedConstraints, m.TotalConstraints, m.Status, ts, ts)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, duplicate("insert match", err)
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}

	a.ID, a.Created = appID, ts
	m.ID, m.JobID, m.CandidateID, m.Created, m.Updated = matchID, a.JobID, a.CandidateID, ts, ts
	return appID, matchID, nil
}

func (r *SQLiteRepo) GetApplicationByJobAndCandidate(ctx context.Context, jobID, candidateID int64) (*models.Application, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, job_id, candidate_id, responses, created FROM applications WHERE job_id = ? AND candidate_id = ?`, jobID, candidateID)
	var a models.Application
	var raw string
	if err := row.Scan(&a.ID, &a.JobID, &a.CandidateID, &raw, &a.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	responses, err := decodeResponses(raw)
	if err != nil {
		return nil, fmt.Errorf("decode responses of application %d: %w", a.ID, err)
	}
	a.Responses = responses
	return &a, nil
}

// decodeResponses reads the JSON object keyed by decimal form key id.
func decodeResponses(raw string) (models.Responses, error) {
	out := models.Responses{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
