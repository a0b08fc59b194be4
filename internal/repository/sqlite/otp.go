package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garnizeh/recruit/pkg/models"
)

// SaveCode stores the code for its email, replacing any previous one.
func (r *SQLiteRepo) SaveCode(ctx context.Context, c *models.OTPCode) error {
	if c == nil {
		return fmt.Errorf("otp code is nil")
	}
	_, err := r.conn.Exec(ctx, `INSERT INTO otp_codes (email, code_hash, expires_at, attempts) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET code_hash = excluded.code_hash, expires_at = excluded.expires_at, attempts = excluded.attempts`,
		c.Email, c.CodeHash, c.ExpiresAt.UTC().UnixMilli(), c.Attempts)
	return err
}

func (r *SQLiteRepo) GetCode(ctx context.Context, email string) (*models.OTPCode, error) {
	row := r.conn.QueryRow(ctx, `SELECT email, code_hash, expires_at, attempts FROM otp_codes WHERE email = ?`, email)
	var c models.OTPCode
	var exp int64
	if err := row.Scan(&c.Email, &c.CodeHash, &exp, &c.Attempts); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.ExpiresAt = time.UnixMilli(exp)
	return &c, nil
}

func (r *SQLiteRepo) IncrementAttempts(ctx context.Context, email string) error {
	_, err := r.conn.Exec(ctx, `UPDATE otp_codes SET attempts = attempts + 1 WHERE email = ?`, email)
	return err
}

func (r *SQLiteRepo) DeleteCode(ctx context.Context, email string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM otp_codes WHERE email = ?`, email)
	return err
}

// PurgeExpired deletes codes expiring at or before the given time.
func (r *SQLiteRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at <= ?`, before.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
