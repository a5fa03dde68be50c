package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"clinigate/internal/lockout"
	"clinigate/internal/models"
)

// pgErrUndefinedTable is SQLSTATE undefined_table.
const pgErrUndefinedTable = "42P01"

// LoginAttemptStore is the Postgres login ledger.
type LoginAttemptStore struct {
	db *sql.DB
}

// NewLoginAttemptStore creates a new LoginAttemptStore with the given database connection.
func NewLoginAttemptStore(db *sql.DB) *LoginAttemptStore {
	return &LoginAttemptStore{db: db}
}

// ledgerError wraps err, marking a missing login_attempts table as
// lockout.ErrLedgerUnavailable.
func ledgerError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUndefinedTable {
		return fmt.Errorf("%s: %w: %v", op, lockout.ErrLedgerUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Record appends an attempt.
func (s *LoginAttemptStore) Record(ctx context.Context, a models.LoginAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_attempts (email, ip_address, user_agent, success, attempted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, models.NormalizeEmail(a.Email), a.IPAddress, a.UserAgent, a.Success, a.At)
	if err != nil {
		return ledgerError("record login attempt", err)
	}
	return nil
}

// FailuresSince returns failed attempt times for email at or after since,
// oldest first.
func (s *LoginAttemptStore) FailuresSince(ctx context.Context, email string, since time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempted_at FROM login_attempts
		WHERE email = $1 AND success = FALSE AND attempted_at >= $2
		ORDER BY attempted_at ASC
	`, models.NormalizeEmail(email), since)
	if err != nil {
		return nil, ledgerError("list login failures", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("scan login failure: %w", err)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

// PurgeFailures deletes failed attempts for email older than before.
func (s *LoginAttemptStore) PurgeFailures(ctx context.Context, email string, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM login_attempts WHERE email = $1 AND success = FALSE AND attempted_at < $2
	`, models.NormalizeEmail(email), before)
	if err != nil {
		return 0, ledgerError("purge login failures", err)
	}
	return res.RowsAffected()
}

// PurgeAllFailures deletes every failed attempt older than before.
func (s *LoginAttemptStore) PurgeAllFailures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM login_attempts WHERE success = FALSE AND attempted_at < $1
	`, before)
	if err != nil {
		return 0, ledgerError("purge all login failures", err)
	}
	return res.RowsAffected()
}
