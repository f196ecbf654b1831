package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rog/backend/internal/domain"
)

// PgQuotaPlanRepository implements QuotaPlanRepository using pgx.
type PgQuotaPlanRepository struct{}

// NewPgQuotaPlanRepository creates a new PgQuotaPlanRepository.
func NewPgQuotaPlanRepository() *PgQuotaPlanRepository {
	return &PgQuotaPlanRepository{}
}

func (r *PgQuotaPlanRepository) Find(ctx context.Context, db DBTX, associationID string, year int) (*domain.QuotaPlan, error) {
	var p domain.QuotaPlan
	var items []byte
	err := db.QueryRow(ctx,
		`SELECT association_id, year, title, source_filename, imported_at, items, updated_at
		 FROM quota_plans WHERE association_id = $1 AND year = $2`,
		associationID, year).Scan(&p.AssociationID, &p.Year, &p.Title, &p.SourceFilename, &p.ImportedAt, &items, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find quota plan: %w", err)
	}
	if p.Items, err = domain.DecodeLineItems(items); err != nil {
		return nil, fmt.Errorf("quota plan %s: %w", p.DocumentID(), err)
	}
	return &p, nil
}

// Replace overwrites the whole plan document for (association, year).
func (r *PgQuotaPlanRepository) Replace(ctx context.Context, db DBTX, p *domain.QuotaPlan) error {
	items, err := jsonb(p.Items)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO quota_plans (association_id, year, title, source_filename, imported_at, items, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (association_id, year) DO UPDATE SET
		  title = EXCLUDED.title,
		  source_filename = EXCLUDED.source_filename,
		  imported_at = EXCLUDED.imported_at,
		  items = EXCLUDED.items,
		  updated_at = EXCLUDED.updated_at`,
		p.AssociationID, p.Year, p.Title, p.SourceFilename, p.ImportedAt, items, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("replace quota plan: %w", err)
	}
	return nil
}
