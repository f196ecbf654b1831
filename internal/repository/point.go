package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rog/backend/internal/domain"
)

// PgPointRepository implements PointRepository using pgx.
type PgPointRepository struct{}

// NewPgPointRepository creates a new PgPointRepository.
func NewPgPointRepository() *PgPointRepository {
	return &PgPointRepository{}
}

func (r *PgPointRepository) ListByAssociation(ctx context.Context, db DBTX, associationID string) ([]domain.Point, error) {
	rows, err := db.Query(ctx,
		`SELECT id, association_id, point_id, ld_name, name, type, lat, lng, notes, status, source, created_at, updated_at
		 FROM points
		 WHERE association_id = $1
		 ORDER BY name, point_id`, associationID)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	var out []domain.Point
	for rows.Next() {
		var p domain.Point
		var status string
		err := rows.Scan(&p.ID, &p.AssociationID, &p.PointID, &p.LDName, &p.Name, &p.Type,
			&p.Lat, &p.Lng, &p.Notes, &status, &p.Source, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Status = domain.PointStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertBatch merges the points. Empty optional fields in the import keep
// the stored value, so a partial re-import never blanks a point.
func (r *PgPointRepository) UpsertBatch(ctx context.Context, db DBTX, points []domain.Point) error {
	b := &pgx.Batch{}
	for _, p := range points {
		b.Queue(`
			INSERT INTO points (id, association_id, point_id, ld_name, name, type, lat, lng, notes, status, source, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
			ON CONFLICT (association_id, point_id) DO UPDATE SET
			  ld_name = COALESCE(NULLIF(EXCLUDED.ld_name, ''), points.ld_name),
			  name = COALESCE(NULLIF(EXCLUDED.name, ''), points.name),
			  type = COALESCE(NULLIF(EXCLUDED.type, ''), points.type),
			  lat = COALESCE(EXCLUDED.lat, points.lat),
			  lng = COALESCE(EXCLUDED.lng, points.lng),
			  notes = COALESCE(NULLIF(EXCLUDED.notes, ''), points.notes),
			  status = COALESCE(NULLIF(EXCLUDED.status, ''), points.status),
			  source = COALESCE(NULLIF(EXCLUDED.source, ''), points.source),
			  updated_at = now()`,
			p.ID, p.AssociationID, p.PointID, p.LDName, p.Name, p.Type, p.Lat, p.Lng,
			p.Notes, string(p.Status), p.Source)
	}
	if err := execBatch(ctx, db, b); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}
