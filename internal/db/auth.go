package db

import (
	"context"
	"time"

	"github.com/reviewhub/backend/internal/model"
)

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			login_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			failed_attempts INT NOT NULL DEFAULT 0,
			locked_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS users_email_idx ON users(email) WHERE email <> ''`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

const userColumns = `id, login_id, email, display_name, password_hash, failed_attempts, locked_until, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.LoginID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) CreateUser(ctx context.Context, loginID, email, displayName, passwordHash string) (*model.User, error) {
	query := `
		INSERT INTO users (login_id, email, display_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query, loginID, email, displayName, passwordHash))
}

func (db *Postgres) GetUserByLoginID(ctx context.Context, loginID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login_id = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, loginID))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, email))
}

// RecordFailedLogin increments the failed-attempt counter and, when the
// incremented count reaches the threshold while no lock is active, sets
// locked_until in the same statement. Doing both in one UPDATE keeps
// concurrent failures from under-counting or double-triggering the
// lock; an attempt against an already active lock only increments.
func (db *Postgres) RecordFailedLogin(ctx context.Context, userID int64, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE
		        WHEN failed_attempts + 1 >= $2 AND (locked_until IS NULL OR locked_until <= NOW())
		        THEN $3
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts, locked_until
	`
	var attempts int
	var until *time.Time
	if err := db.Pool.QueryRow(ctx, query, userID, threshold, lockUntil).Scan(&attempts, &until); err != nil {
		return 0, nil, err
	}
	return attempts, until, nil
}

// ResetLoginState clears the counter and any lock after a successful
// login while unlocked.
func (db *Postgres) ResetLoginState(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

func (db *Postgres) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID, passwordHash)
	return err
}

func (db *Postgres) GetUserSummary(ctx context.Context, userID int64) (*model.UserSummary, error) {
	query := `SELECT id, display_name FROM users WHERE id = $1`
	var summary model.UserSummary
	if err := db.Pool.QueryRow(ctx, query, userID).Scan(&summary.ID, &summary.DisplayName); err != nil {
		return nil, err
	}
	return &summary, nil
}
