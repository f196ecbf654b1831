package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/importer"
	"github.com/rog/backend/internal/infra"
	"github.com/rog/backend/internal/repository"
)

// PointService lists and imports the map points of an association.
type PointService struct {
	db      repository.DBTX
	points  repository.PointRepository
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewPointService creates a PointService.
func NewPointService(db repository.DBTX, points repository.PointRepository, metrics *infra.Metrics, logger *slog.Logger) *PointService {
	return &PointService{db: db, points: points, metrics: metrics, logger: logger}
}

// PointImportResult reports how many rows were written and skipped.
type PointImportResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// List returns the points of the caller's association.
func (s *PointService) List(ctx context.Context, id domain.Identity) ([]domain.Point, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	points, err := s.points.ListByAssociation(ctx, s.db, ldID)
	if err != nil {
		return nil, domain.ErrUpstream("list points", err)
	}
	if points == nil {
		points = []domain.Point{}
	}
	return points, nil
}

// Import upserts rows keyed by their external point id in batches of
// repository.BatchSize. Rows without a point id or with bad coordinates are
// skipped. A later duplicate of the same point id wins. Batches written
// before a failure stay written.
func (s *PointService) Import(ctx context.Context, id domain.Identity, rows []domain.PointImportRow) (*PointImportResult, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrValidation("missing rows[]")
	}

	byID := make(map[string]int, len(rows))
	points := make([]domain.Point, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		p, err := row.ToPoint(ldID)
		if err != nil {
			skipped++
			continue
		}
		if p.Status == domain.PointUnset {
			p.Status = domain.PointActive
		}
		if i, ok := byID[p.PointID]; ok {
			points[i] = *p
			skipped++
			continue
		}
		byID[p.PointID] = len(points)
		points = append(points, *p)
	}

	written, err := importer.WriteChunked(ctx, points, repository.BatchSize, func(ctx context.Context, chunk []domain.Point) error {
		return s.points.UpsertBatch(ctx, s.db, chunk)
	})
	s.metrics.RecordImportRows("points", "written", written)
	s.metrics.RecordImportRows("points", "skipped", skipped)
	if err != nil {
		s.logger.Error("points import", "ldId", ldID, "written", written, "error", err)
		return nil, domain.ErrUpstream("import points", err).WithDetail(fmt.Sprintf("%d rows written before failure", written))
	}

	s.logger.Info("points imported", "ldId", ldID, "processed", written, "skipped", skipped)
	return &PointImportResult{Processed: written, Skipped: skipped}, nil
}
