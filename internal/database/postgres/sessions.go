package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRepository persists web login sessions.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateSession stores a new session token with the given lifetime.
func (r *SessionRepository) CreateSession(ctx context.Context, token string, lifetime time.Duration) error {
	query := `
		INSERT INTO sessions (token, created_at, expires_at)
		VALUES ($1, NOW(), NOW() + $2::interval)
	`

	interval := fmt.Sprintf("%d seconds", int(lifetime.Seconds()))
	if _, err := r.pool.Exec(ctx, query, token, interval); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ValidateSession reports whether the token exists and has not expired.
func (r *SessionRepository) ValidateSession(ctx context.Context, token string) (bool, error) {
	query := `SELECT 1 FROM sessions WHERE token = $1 AND expires_at > NOW()`

	var one int
	err := r.pool.QueryRow(ctx, query, token).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("validate session: %w", err)
	}
	return true, nil
}

// DeleteSession removes a session token.
func (r *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions removes all expired sessions and returns the count.
func (r *SessionRepository) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}
