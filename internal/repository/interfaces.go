package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rog/backend/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
// The in-memory repositories ignore it, so nil is accepted there.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// BatchSize is the number of writes sent in one batch by bulk upserts.
const BatchSize = 400

// ErrDuplicate is returned by Create when the key already exists.
var ErrDuplicate = errors.New("duplicate key")

// AccountRepository provides access to accounts.
type AccountRepository interface {
	// FindByCode returns an account, or nil if not found.
	FindByCode(ctx context.Context, db DBTX, code string) (*domain.Account, error)

	// ListByAssociation returns the accounts of an association ordered by name.
	ListByAssociation(ctx context.Context, db DBTX, associationID string) ([]domain.Account, error)

	CountByAssociation(ctx context.Context, db DBTX, associationID string) (int, error)

	// Create inserts a new account. Returns ErrDuplicate if the code exists;
	// the existing row is left untouched.
	Create(ctx context.Context, db DBTX, account *domain.Account) error

	// Patch merges the set fields into the account and returns the result,
	// or nil if the account does not exist.
	Patch(ctx context.Context, db DBTX, code string, patch domain.AccountPatch) (*domain.Account, error)

	// SetCredential replaces the stored credential. resetAt is recorded as
	// the last PIN reset when non-nil.
	SetCredential(ctx context.Context, db DBTX, code, credential string, resetAt *time.Time) error

	// Delete removes an account. Returns false if it did not exist.
	Delete(ctx context.Context, db DBTX, code string) (bool, error)

	// DistinctAssociationIDs returns every association id referenced by an account.
	DistinctAssociationIDs(ctx context.Context, db DBTX) ([]string, error)
}

// AssociationRepository provides access to associations.
type AssociationRepository interface {
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Association, error)
	List(ctx context.Context, db DBTX) ([]domain.Association, error)
	Exists(ctx context.Context, db DBTX, id string) (bool, error)

	// UpsertBatch merges up to BatchSize associations in one round trip.
	UpsertBatch(ctx context.Context, db DBTX, items []domain.Association) error
}

// ActiveHuntRepository provides access to in-progress hunt sessions.
type ActiveHuntRepository interface {
	// ListByAssociation returns sessions ordered by start time, newest first.
	ListByAssociation(ctx context.Context, db DBTX, associationID string) ([]domain.ActiveHunt, error)

	// Upsert stores the hunter's single session, replacing any previous one.
	Upsert(ctx context.Context, db DBTX, hunt *domain.ActiveHunt) error

	// DeleteByOwner ends the hunter's session. Returns false if none existed.
	DeleteByOwner(ctx context.Context, db DBTX, hunterID string) (bool, error)
}

// HuntLogRepository provides access to finished hunts.
type HuntLogRepository interface {
	// List returns logs ordered by finish time, newest first.
	List(ctx context.Context, db DBTX, filter domain.HuntLogFilter) ([]domain.HuntLog, error)

	// ListFinishedBetween returns logs finished in [from, to).
	ListFinishedBetween(ctx context.Context, db DBTX, associationID string, from, to time.Time) ([]domain.HuntLog, error)

	// CountCreatedSince counts logs created at or after since.
	CountCreatedSince(ctx context.Context, db DBTX, associationID string, since time.Time) (int, error)

	Create(ctx context.Context, db DBTX, log *domain.HuntLog) error
}

// PointRepository provides access to points of interest.
type PointRepository interface {
	ListByAssociation(ctx context.Context, db DBTX, associationID string) ([]domain.Point, error)

	// UpsertBatch merges up to BatchSize points keyed by (association, point id).
	UpsertBatch(ctx context.Context, db DBTX, points []domain.Point) error
}

// QuotaPlanRepository provides access to imported quota plans.
type QuotaPlanRepository interface {
	// Find returns the plan for the year, or nil if none was imported.
	Find(ctx context.Context, db DBTX, associationID string, year int) (*domain.QuotaPlan, error)

	// Replace stores the plan, discarding any previous plan for the same year.
	Replace(ctx context.Context, db DBTX, plan *domain.QuotaPlan) error
}

// LoginAttemptRepository records login outcomes for the lockout guard.
type LoginAttemptRepository interface {
	Record(ctx context.Context, db DBTX, code, ip string, success bool) error
	CountFailuresSince(ctx context.Context, db DBTX, code string, since time.Time) (int, error)
}

// Set bundles one implementation of every repository.
type Set struct {
	Accounts      AccountRepository
	Associations  AssociationRepository
	ActiveHunts   ActiveHuntRepository
	HuntLogs      HuntLogRepository
	Points        PointRepository
	QuotaPlans    QuotaPlanRepository
	LoginAttempts LoginAttemptRepository
}

// NewPgSet returns the pgx-backed repositories.
func NewPgSet() Set {
	return Set{
		Accounts:      NewPgAccountRepository(),
		Associations:  NewPgAssociationRepository(),
		ActiveHunts:   NewPgActiveHuntRepository(),
		HuntLogs:      NewPgHuntLogRepository(),
		Points:        NewPgPointRepository(),
		QuotaPlans:    NewPgQuotaPlanRepository(),
		LoginAttempts: NewPgLoginAttemptRepository(),
	}
}
