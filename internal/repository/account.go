package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rog/backend/internal/domain"
)

const accountColumns = `code, name, association_id, role, credential, enabled, created_at, updated_at, last_pin_reset_at`

// PgAccountRepository implements AccountRepository using pgx.
type PgAccountRepository struct{}

// NewPgAccountRepository creates a new PgAccountRepository.
func NewPgAccountRepository() *PgAccountRepository {
	return &PgAccountRepository{}
}

// FindByCode returns an account by code, or nil if not found.
func (r *PgAccountRepository) FindByCode(ctx context.Context, db DBTX, code string) (*domain.Account, error) {
	row := db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PgAccountRepository) ListByAssociation(ctx context.Context, db DBTX, associationID string) ([]domain.Account, error) {
	rows, err := db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE association_id = $1
		 ORDER BY name, code`, associationID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *PgAccountRepository) CountByAssociation(ctx context.Context, db DBTX, associationID string) (int, error) {
	var n int
	err := db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE association_id = $1`, associationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// Create inserts a new account. An existing code is never overwritten.
func (r *PgAccountRepository) Create(ctx context.Context, db DBTX, a *domain.Account) error {
	tag, err := db.Exec(ctx,
		`INSERT INTO accounts (code, name, association_id, role, credential, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 ON CONFLICT (code) DO NOTHING`,
		a.Code, a.Name, a.AssociationID, string(a.Role), a.Credential, a.Enabled)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

// Patch merges the non-nil fields of the patch.
func (r *PgAccountRepository) Patch(ctx context.Context, db DBTX, code string, p domain.AccountPatch) (*domain.Account, error) {
	var role *string
	if p.Role != nil {
		s := string(*p.Role)
		role = &s
	}
	row := db.QueryRow(ctx,
		`UPDATE accounts SET
		   enabled = COALESCE($2, enabled),
		   name = COALESCE($3, name),
		   role = COALESCE($4, role),
		   updated_at = now()
		 WHERE code = $1
		 RETURNING `+accountColumns,
		code, p.Enabled, p.Name, role)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetCredential replaces the stored credential for the given code.
func (r *PgAccountRepository) SetCredential(ctx context.Context, db DBTX, code, credential string, resetAt *time.Time) error {
	tag, err := db.Exec(ctx,
		`UPDATE accounts SET
		   credential = $2,
		   last_pin_reset_at = COALESCE($3, last_pin_reset_at),
		   updated_at = now()
		 WHERE code = $1`,
		code, credential, resetAt)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("account", code)
	}
	return nil
}

func (r *PgAccountRepository) Delete(ctx context.Context, db DBTX, code string) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM accounts WHERE code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgAccountRepository) DistinctAssociationIDs(ctx context.Context, db DBTX) ([]string, error) {
	rows, err := db.Query(ctx,
		`SELECT DISTINCT association_id FROM accounts
		 WHERE association_id <> ''
		 ORDER BY association_id`)
	if err != nil {
		return nil, fmt.Errorf("distinct association ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var role string
	err := row.Scan(&a.Code, &a.Name, &a.AssociationID, &role, &a.Credential, &a.Enabled,
		&a.CreatedAt, &a.UpdatedAt, &a.LastPinResetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Role = domain.Role(role)
	return &a, nil
}
