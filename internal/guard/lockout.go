package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/repository"
)

// Lockout defaults.
const (
	MaxAttempts   = 5
	LockoutWindow = 15 * time.Minute
)

// Lockout blocks an account code after too many failed logins within the window.
type Lockout struct {
	db          repository.DBTX
	attempts    repository.LoginAttemptRepository
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewLockout creates a lockout guard. Zero limits fall back to the defaults.
func NewLockout(db repository.DBTX, attempts repository.LoginAttemptRepository, maxAttempts int, window time.Duration, logger *slog.Logger) *Lockout {
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	if window <= 0 {
		window = LockoutWindow
	}
	return &Lockout{
		db:          db,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		now:         time.Now,
	}
}

// Check returns ErrAccountLocked if the code has reached the failure limit.
// Store errors never block a login.
func (l *Lockout) Check(ctx context.Context, code string) error {
	count, err := l.attempts.CountFailuresSince(ctx, l.db, code, l.now().Add(-l.window))
	if err != nil {
		l.logger.Warn("lockout check failed, allowing login", "code", code, "error", err)
		return nil
	}
	if count >= l.maxAttempts {
		return domain.ErrAccountLocked("too many failed login attempts, try again later")
	}
	return nil
}

// Record stores a login outcome. Failures are logged only.
func (l *Lockout) Record(ctx context.Context, code, ip string, success bool) {
	if err := l.attempts.Record(ctx, l.db, code, ip, success); err != nil {
		l.logger.Warn("record login attempt failed", "code", code, "error", err)
	}
}
