package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/repository"
)

// HuntService handles active sessions and finished hunt logs.
type HuntService struct {
	db          repository.DBTX
	activeHunts repository.ActiveHuntRepository
	huntLogs    repository.HuntLogRepository
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// NewHuntService creates a HuntService. Date-only filters are read in loc.
func NewHuntService(
	db repository.DBTX,
	activeHunts repository.ActiveHuntRepository,
	huntLogs repository.HuntLogRepository,
	loc *time.Location,
	logger *slog.Logger,
) *HuntService {
	if loc == nil {
		loc = time.UTC
	}
	return &HuntService{
		db:          db,
		activeHunts: activeHunts,
		huntLogs:    huntLogs,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// ListActive returns the in-progress sessions of the caller's association.
func (s *HuntService) ListActive(ctx context.Context, id domain.Identity) ([]domain.ActiveHunt, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	hunts, err := s.activeHunts.ListByAssociation(ctx, s.db, ldID)
	if err != nil {
		return nil, domain.ErrUpstream("list active hunts", err)
	}
	if hunts == nil {
		hunts = []domain.ActiveHunt{}
	}
	return hunts, nil
}

// StartActive stores the caller's session, replacing any earlier one.
func (s *HuntService) StartActive(ctx context.Context, id domain.Identity, loc domain.Location) (*domain.ActiveHunt, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	hunt := &domain.ActiveHunt{
		HunterID:      id.Code,
		HunterName:    id.Name,
		AssociationID: ldID,
		Location:      loc.Clean(),
		StartedAt:     s.now().UTC(),
	}
	if err := hunt.Validate(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := s.activeHunts.Upsert(ctx, s.db, hunt); err != nil {
		return nil, domain.ErrUpstream("store active hunt", err)
	}
	return hunt, nil
}

// EndActive removes the caller's session.
func (s *HuntService) EndActive(ctx context.Context, id domain.Identity) error {
	deleted, err := s.activeHunts.DeleteByOwner(ctx, s.db, id.Code)
	if err != nil {
		return domain.ErrUpstream("end active hunt", err)
	}
	if !deleted {
		return domain.ErrNotFound("active hunt", id.Code)
	}
	return nil
}

// LogQuery holds the raw hunt log list parameters.
type LogQuery struct {
	From  string
	To    string
	Limit string
}

// ListLogs returns finished hunts of the caller's association, newest first.
func (s *HuntService) ListLogs(ctx context.Context, id domain.Identity, q LogQuery) ([]domain.HuntLog, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	filter := domain.HuntLogFilter{AssociationID: ldID}
	if filter.From, err = s.parseBound(q.From, "from", false); err != nil {
		return nil, err
	}
	if filter.To, err = s.parseBound(q.To, "to", true); err != nil {
		return nil, err
	}
	if raw := strings.TrimSpace(q.Limit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, domain.ErrValidation("invalid limit")
		}
		filter.Limit = n
	}
	filter.Limit = domain.ClampLimit(filter.Limit)

	logs, err := s.huntLogs.List(ctx, s.db, filter)
	if err != nil {
		return nil, domain.ErrUpstream("list hunt logs", err)
	}
	if logs == nil {
		logs = []domain.HuntLog{}
	}
	return logs, nil
}

var boundLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// parseBound reads a from/to filter. RFC 3339 values keep their offset;
// local layouts are read in the configured zone. A date-only upper bound
// covers the whole day.
func (s *HuntService) parseBound(raw, name string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, s.loc); err == nil {
		if upper {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return &t, nil
	}
	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return &t, nil
		}
	}
	return nil, domain.ErrValidation("invalid '" + name + "' date")
}

// HuntLogInput is a finished hunt as submitted by the hunter.
type HuntLogInput struct {
	Species     string `json:"species"`
	Harvest     bool   `json:"harvest"`
	Notes       string `json:"notes"`
	EndedReason string `json:"endedReason"`
	domain.Location
	StartedAt    time.Time            `json:"startedAt"`
	FinishedAt   time.Time            `json:"finishedAt"`
	HarvestItems []domain.HarvestItem `json:"harvestItems"`
	PendingItems []domain.PendingItem `json:"pendingItems"`
}

// CreateLog records a finished hunt for the caller. Logs are never updated.
func (s *HuntService) CreateLog(ctx context.Context, id domain.Identity, input HuntLogInput) (*domain.HuntLog, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}

	loc := input.Location
	if loc.Mode != "" {
		loc = loc.Clean()
	}
	log := &domain.HuntLog{
		ID:            uuid.NewString(),
		AssociationID: ldID,
		HunterID:      id.Code,
		HunterName:    id.Name,
		Species:       domain.CleanText(input.Species),
		Harvest:       input.Harvest,
		Notes:         domain.CleanText(input.Notes),
		EndedReason:   domain.CleanText(input.EndedReason),
		Location:      loc,
		StartedAt:     input.StartedAt.UTC(),
		FinishedAt:    input.FinishedAt.UTC(),
		CreatedAt:     s.now().UTC(),
		HarvestItems:  keyItems(input.HarvestItems),
		PendingItems:  keyItems(input.PendingItems),
	}
	if err := log.Validate(); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	if err := s.huntLogs.Create(ctx, s.db, log); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrConflict("hunt log already exists")
		}
		return nil, domain.ErrUpstream("create hunt log", err)
	}
	return log, nil
}

// keyItems cleans item labels and derives the key when only species and
// class were sent.
func keyItems(items []domain.HarvestItem) []domain.HarvestItem {
	out := make([]domain.HarvestItem, 0, len(items))
	for _, it := range items {
		it.Species = domain.CleanText(it.Species)
		it.Class = domain.CleanText(it.Class)
		it.Key = strings.TrimSpace(it.Key)
		if it.Key == "" && it.Species != "" {
			it.Key = domain.DeriveKey(it.Species, it.Class)
		}
		out = append(out, it)
	}
	return out
}
