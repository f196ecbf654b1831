package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/infra"
	"github.com/rog/backend/internal/quota"
	"github.com/rog/backend/internal/repository"
)

// QuotaService imports harvest plans and reconciles them with hunt logs.
type QuotaService struct {
	db       repository.DBTX
	plans    repository.QuotaPlanRepository
	huntLogs repository.HuntLogRepository
	loc      *time.Location
	now      func() time.Time
	metrics  *infra.Metrics
	logger   *slog.Logger
}

// NewQuotaService creates a QuotaService. Calendar years are taken in loc.
func NewQuotaService(
	db repository.DBTX,
	plans repository.QuotaPlanRepository,
	huntLogs repository.HuntLogRepository,
	loc *time.Location,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *QuotaService {
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaService{
		db:       db,
		plans:    plans,
		huntLogs: huntLogs,
		loc:      loc,
		now:      time.Now,
		metrics:  metrics,
		logger:   logger,
	}
}

// PlanUpload is a base64 spreadsheet upload.
type PlanUpload struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"contentBase64"`
}

// ImportWorkbook parses the uploaded workbook and replaces the plan of the
// year. It returns the number of line items stored.
func (s *QuotaService) ImportWorkbook(ctx context.Context, id domain.Identity, year int, upload PlanUpload) (int, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return 0, err
	}
	if err := domain.ValidateYear(year); err != nil {
		return 0, err
	}

	items, err := quota.ParseUpload(upload.ContentBase64)
	if err != nil {
		return 0, err
	}

	filename := strings.TrimSpace(upload.Filename)
	if filename == "" {
		filename = domain.DefaultPlanFilename
	}
	now := s.now().UTC()
	plan := &domain.QuotaPlan{
		AssociationID:  ldID,
		Year:           year,
		Title:          domain.PlanTitle(ldID, year),
		SourceFilename: filename,
		ImportedAt:     now,
		Items:          items,
		UpdatedAt:      now,
	}
	if err := s.plans.Replace(ctx, s.db, plan); err != nil {
		return 0, domain.ErrUpstream("store plan", err)
	}

	s.metrics.RecordImportRows("plan", "written", len(items))
	s.logger.Info("plan imported", "ldId", ldID, "year", year, "items", len(items), "file", filename)
	return len(items), nil
}

// View reconciles the plan of the year with the hunts finished in that
// calendar year. A missing plan yields an empty view.
func (s *QuotaService) View(ctx context.Context, id domain.Identity, year int) (*domain.QuotaView, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateYear(year); err != nil {
		return nil, err
	}

	plan, err := s.plans.Find(ctx, s.db, ldID, year)
	if err != nil {
		return nil, domain.ErrUpstream("find plan", err)
	}

	from, to := quota.YearRange(year, s.loc)
	logs, err := s.huntLogs.ListFinishedBetween(ctx, s.db, ldID, from, to)
	if err != nil {
		return nil, domain.ErrUpstream("list hunt logs", err)
	}

	view := &domain.QuotaView{
		AssociationID: ldID,
		Year:          year,
		Title:         domain.PlanTitle(ldID, year),
		Rows:          []domain.QuotaViewRow{},
	}
	if plan == nil {
		return view, nil
	}
	if plan.Title != "" {
		view.Title = plan.Title
	}
	updated := plan.UpdatedAt
	view.UpdatedAt = &updated
	if rows := quota.Reconcile(plan.Items, logs); rows != nil {
		view.Rows = rows
	}
	return view, nil
}
