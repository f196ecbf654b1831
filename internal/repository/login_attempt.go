package repository

import (
	"context"
	"fmt"
	"time"
)

// PgLoginAttemptRepository implements LoginAttemptRepository using pgx.
type PgLoginAttemptRepository struct{}

// NewPgLoginAttemptRepository creates a new PgLoginAttemptRepository.
func NewPgLoginAttemptRepository() *PgLoginAttemptRepository {
	return &PgLoginAttemptRepository{}
}

func (r *PgLoginAttemptRepository) Record(ctx context.Context, db DBTX, code, ip string, success bool) error {
	_, err := db.Exec(ctx, `
		INSERT INTO login_attempts (code, ip_address, success)
		VALUES ($1, $2, $3)`,
		code, ip, success)
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}

func (r *PgLoginAttemptRepository) CountFailuresSince(ctx context.Context, db DBTX, code string, since time.Time) (int, error) {
	var count int
	err := db.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE code = $1 AND success = false AND created_at > $2`,
		code, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count login failures: %w", err)
	}
	return count, nil
}
