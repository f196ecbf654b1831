package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/repository"
)

// DashboardService builds the association overview.
type DashboardService struct {
	db           repository.DBTX
	accounts     repository.AccountRepository
	associations repository.AssociationRepository
	huntLogs     repository.HuntLogRepository
	loc          *time.Location
	now          func() time.Time
	logger       *slog.Logger
}

// NewDashboardService creates a DashboardService. Month boundaries are taken
// in loc.
func NewDashboardService(
	db repository.DBTX,
	accounts repository.AccountRepository,
	associations repository.AssociationRepository,
	huntLogs repository.HuntLogRepository,
	loc *time.Location,
	logger *slog.Logger,
) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		db:           db,
		accounts:     accounts,
		associations: associations,
		huntLogs:     huntLogs,
		loc:          loc,
		now:          time.Now,
		logger:       logger,
	}
}

// Get returns the overview. Failed sub-queries are logged and leave their
// field at its fallback.
func (s *DashboardService) Get(ctx context.Context, id domain.Identity) (*domain.Dashboard, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := &domain.Dashboard{
		AssociationID:   ldID,
		AssociationName: ldID,
		LastSync:        now.UTC(),
	}

	if a, err := s.associations.FindByID(ctx, s.db, ldID); err != nil {
		s.logger.Warn("dashboard association lookup", "ldId", ldID, "error", err)
	} else if a != nil && a.Name != "" {
		out.AssociationName = a.Name
	}

	if n, err := s.accounts.CountByAssociation(ctx, s.db, ldID); err != nil {
		s.logger.Warn("dashboard member count", "ldId", ldID, "error", err)
	} else {
		out.UsersCount = n
	}

	local := now.In(s.loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
	if n, err := s.huntLogs.CountCreatedSince(ctx, s.db, ldID, monthStart); err != nil {
		s.logger.Warn("dashboard hunt count", "ldId", ldID, "error", err)
	} else {
		out.HuntsThisMonth = n
	}

	return out, nil
}
