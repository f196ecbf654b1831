package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rog/backend/internal/domain"
)

// PgAssociationRepository implements AssociationRepository using pgx.
type PgAssociationRepository struct{}

// NewPgAssociationRepository creates a new PgAssociationRepository.
func NewPgAssociationRepository() *PgAssociationRepository {
	return &PgAssociationRepository{}
}

const associationColumns = `id, name, region, kml_file, enabled, created_at, updated_at`

func (r *PgAssociationRepository) FindByID(ctx context.Context, db DBTX, id string) (*domain.Association, error) {
	row := db.QueryRow(ctx, `SELECT `+associationColumns+` FROM associations WHERE id = $1`, id)
	a, err := scanAssociation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *PgAssociationRepository) List(ctx context.Context, db DBTX) ([]domain.Association, error) {
	rows, err := db.Query(ctx, `SELECT `+associationColumns+` FROM associations ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list associations: %w", err)
	}
	defer rows.Close()

	var out []domain.Association
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *PgAssociationRepository) Exists(ctx context.Context, db DBTX, id string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM associations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("association exists: %w", err)
	}
	return exists, nil
}

// UpsertBatch merges the associations. created_at survives re-imports.
func (r *PgAssociationRepository) UpsertBatch(ctx context.Context, db DBTX, items []domain.Association) error {
	b := &pgx.Batch{}
	for _, a := range items {
		b.Queue(`
			INSERT INTO associations (id, name, region, kml_file, enabled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (id) DO UPDATE SET
			  name = EXCLUDED.name,
			  region = EXCLUDED.region,
			  kml_file = EXCLUDED.kml_file,
			  enabled = EXCLUDED.enabled,
			  updated_at = now()`,
			a.ID, a.Name, a.Region, a.KMLFile, a.Enabled)
	}
	if err := execBatch(ctx, db, b); err != nil {
		return fmt.Errorf("upsert associations: %w", err)
	}
	return nil
}

func scanAssociation(row pgx.Row) (*domain.Association, error) {
	var a domain.Association
	err := row.Scan(&a.ID, &a.Name, &a.Region, &a.KMLFile, &a.Enabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan association: %w", err)
	}
	return &a, nil
}
