package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/recruit/pkg/models"
)

func (r *SQLiteRepo) CreateEmployer(ctx context.Context, e *models.Employer) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("employer is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO employers (company_name, email, password_hash, created) VALUES (?, ?, ?, ?)`, e.CompanyName, e.Email, e.PasswordHash, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetEmployerByEmail(ctx context.Context, email string) (*models.Employer, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, company_name, email, password_hash, created FROM employers WHERE email = ?`, email)
	var e models.Employer
	if err := row.Scan(&e.ID, &e.CompanyName, &e.Email, &e.PasswordHash, &e.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return &e, nil
}
