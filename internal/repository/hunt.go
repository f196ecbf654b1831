package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rog/backend/internal/domain"
)

const locationColumns = `location_mode, location_name, poi_id, poi_name, poi_type, lat, lng, approx_lat, approx_lng, approx_radius_m`

func locationArgs(l domain.Location) []interface{} {
	return []interface{}{string(l.Mode), l.Name, l.PoiID, l.PoiName, l.PoiType, l.Lat, l.Lng, l.ApproxLat, l.ApproxLng, l.ApproxRadiusM}
}

// PgActiveHuntRepository implements ActiveHuntRepository using pgx.
type PgActiveHuntRepository struct{}

// NewPgActiveHuntRepository creates a new PgActiveHuntRepository.
func NewPgActiveHuntRepository() *PgActiveHuntRepository {
	return &PgActiveHuntRepository{}
}

func (r *PgActiveHuntRepository) ListByAssociation(ctx context.Context, db DBTX, associationID string) ([]domain.ActiveHunt, error) {
	rows, err := db.Query(ctx,
		`SELECT id, hunter_name, association_id, `+locationColumns+`, started_at
		 FROM active_hunts
		 WHERE association_id = $1
		 ORDER BY started_at DESC`, associationID)
	if err != nil {
		return nil, fmt.Errorf("list active hunts: %w", err)
	}
	defer rows.Close()

	var out []domain.ActiveHunt
	for rows.Next() {
		var h domain.ActiveHunt
		var mode string
		err := rows.Scan(&h.HunterID, &h.HunterName, &h.AssociationID,
			&mode, &h.Name, &h.PoiID, &h.PoiName, &h.PoiType,
			&h.Lat, &h.Lng, &h.ApproxLat, &h.ApproxLng, &h.ApproxRadiusM, &h.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("scan active hunt: %w", err)
		}
		h.Mode = domain.LocationMode(mode)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Upsert replaces the hunter's session; the hunter code is the primary key.
func (r *PgActiveHuntRepository) Upsert(ctx context.Context, db DBTX, h *domain.ActiveHunt) error {
	args := []interface{}{h.HunterID, h.HunterName, h.AssociationID}
	args = append(args, locationArgs(h.Location)...)
	args = append(args, h.StartedAt)
	_, err := db.Exec(ctx, `
		INSERT INTO active_hunts (id, hunter_name, association_id, `+locationColumns+`, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
		  hunter_name = EXCLUDED.hunter_name,
		  association_id = EXCLUDED.association_id,
		  location_mode = EXCLUDED.location_mode,
		  location_name = EXCLUDED.location_name,
		  poi_id = EXCLUDED.poi_id,
		  poi_name = EXCLUDED.poi_name,
		  poi_type = EXCLUDED.poi_type,
		  lat = EXCLUDED.lat,
		  lng = EXCLUDED.lng,
		  approx_lat = EXCLUDED.approx_lat,
		  approx_lng = EXCLUDED.approx_lng,
		  approx_radius_m = EXCLUDED.approx_radius_m,
		  started_at = EXCLUDED.started_at`, args...)
	if err != nil {
		return fmt.Errorf("upsert active hunt: %w", err)
	}
	return nil
}

func (r *PgActiveHuntRepository) DeleteByOwner(ctx context.Context, db DBTX, hunterID string) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM active_hunts WHERE id = $1`, hunterID)
	if err != nil {
		return false, fmt.Errorf("delete active hunt: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PgHuntLogRepository implements HuntLogRepository using pgx.
type PgHuntLogRepository struct{}

// NewPgHuntLogRepository creates a new PgHuntLogRepository.
func NewPgHuntLogRepository() *PgHuntLogRepository {
	return &PgHuntLogRepository{}
}

const huntLogColumns = `id, association_id, hunter_id, hunter_name, species, harvest, notes, ended_reason, ` +
	locationColumns + `, started_at, finished_at, created_at, harvest_items, pending_items`

// List supports optional from/to bounds on finished_at.
func (r *PgHuntLogRepository) List(ctx context.Context, db DBTX, f domain.HuntLogFilter) ([]domain.HuntLog, error) {
	where := []string{"association_id = $1"}
	args := []interface{}{f.AssociationID}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("finished_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("finished_at <= $%d", len(args)))
	}
	args = append(args, domain.ClampLimit(f.Limit))

	query := fmt.Sprintf(`SELECT %s FROM hunt_logs WHERE %s ORDER BY finished_at DESC LIMIT $%d`,
		huntLogColumns, strings.Join(where, " AND "), len(args))
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list hunt logs: %w", err)
	}
	return collectHuntLogs(rows)
}

func (r *PgHuntLogRepository) ListFinishedBetween(ctx context.Context, db DBTX, associationID string, from, to time.Time) ([]domain.HuntLog, error) {
	rows, err := db.Query(ctx,
		`SELECT `+huntLogColumns+` FROM hunt_logs
		 WHERE association_id = $1 AND finished_at >= $2 AND finished_at < $3`,
		associationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list hunt logs for period: %w", err)
	}
	return collectHuntLogs(rows)
}

func (r *PgHuntLogRepository) CountCreatedSince(ctx context.Context, db DBTX, associationID string, since time.Time) (int, error) {
	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM hunt_logs WHERE association_id = $1 AND created_at >= $2`,
		associationID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count hunt logs: %w", err)
	}
	return n, nil
}

// Create inserts a log. Logs are never updated afterwards.
func (r *PgHuntLogRepository) Create(ctx context.Context, db DBTX, l *domain.HuntLog) error {
	harvest, err := jsonb(l.HarvestItems)
	if err != nil {
		return err
	}
	pending, err := jsonb(l.PendingItems)
	if err != nil {
		return err
	}

	args := []interface{}{l.ID, l.AssociationID, l.HunterID, l.HunterName, l.Species, l.Harvest, l.Notes, l.EndedReason}
	args = append(args, locationArgs(l.Location)...)
	args = append(args, l.StartedAt, l.FinishedAt, l.CreatedAt, harvest, pending)

	_, err = db.Exec(ctx, `
		INSERT INTO hunt_logs (`+huntLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23)`, args...)
	if err != nil {
		return fmt.Errorf("insert hunt log: %w", err)
	}
	return nil
}

func collectHuntLogs(rows pgx.Rows) ([]domain.HuntLog, error) {
	defer rows.Close()

	var out []domain.HuntLog
	for rows.Next() {
		var l domain.HuntLog
		var mode string
		var harvest, pending []byte
		err := rows.Scan(&l.ID, &l.AssociationID, &l.HunterID, &l.HunterName, &l.Species, &l.Harvest,
			&l.Notes, &l.EndedReason,
			&mode, &l.Name, &l.PoiID, &l.PoiName, &l.PoiType,
			&l.Lat, &l.Lng, &l.ApproxLat, &l.ApproxLng, &l.ApproxRadiusM,
			&l.StartedAt, &l.FinishedAt, &l.CreatedAt, &harvest, &pending)
		if err != nil {
			return nil, fmt.Errorf("scan hunt log: %w", err)
		}
		l.Mode = domain.LocationMode(mode)
		if l.HarvestItems, err = domain.DecodeHarvestItems(harvest); err != nil {
			return nil, fmt.Errorf("hunt log %s: %w", l.ID, err)
		}
		if l.PendingItems, err = domain.DecodePendingItems(pending); err != nil {
			return nil, fmt.Errorf("hunt log %s: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
