// Package memory implements the repositories on process memory. It backs
// the test suites and the memory storage backend; the DBTX argument is
// ignored throughout.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/repository"
)

// DefaultAttemptRetention bounds how long login attempts are kept. It must
// cover the lockout window.
const DefaultAttemptRetention = time.Hour

type attempt struct {
	code    string
	ip      string
	success bool
	at      time.Time
}

// Store holds every collection behind one lock.
type Store struct {
	mu           sync.RWMutex
	now          func() time.Time
	retention    time.Duration
	accounts     map[string]domain.Account
	associations map[string]domain.Association
	activeHunts  map[string]domain.ActiveHunt
	huntLogs     []domain.HuntLog
	points       map[string]domain.Point
	plans        map[string]domain.QuotaPlan
	attempts     []attempt
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:          time.Now,
		retention:    DefaultAttemptRetention,
		accounts:     make(map[string]domain.Account),
		associations: make(map[string]domain.Association),
		activeHunts:  make(map[string]domain.ActiveHunt),
		points:       make(map[string]domain.Point),
		plans:        make(map[string]domain.QuotaPlan),
	}
}

// SetClock overrides the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetAttemptRetention changes how long login attempts are kept. Values at or
// below zero are ignored.
func (s *Store) SetAttemptRetention(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = d
}

// Set returns repositories backed by the store.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Accounts:      &accountRepo{s},
		Associations:  &associationRepo{s},
		ActiveHunts:   &activeHuntRepo{s},
		HuntLogs:      &huntLogRepo{s},
		Points:        &pointRepo{s},
		QuotaPlans:    &quotaPlanRepo{s},
		LoginAttempts: &loginAttemptRepo{s},
	}
}

// NewSet returns repositories backed by a fresh store.
func NewSet() repository.Set {
	return NewStore().Set()
}

// --- accounts ---

type accountRepo struct{ s *Store }

func (r *accountRepo) FindByCode(_ context.Context, _ repository.DBTX, code string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[code]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (r *accountRepo) ListByAssociation(_ context.Context, _ repository.DBTX, associationID string) ([]domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Account
	for _, a := range r.s.accounts {
		if a.AssociationID == associationID {
			out = append(out, *cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *accountRepo) CountByAssociation(_ context.Context, _ repository.DBTX, associationID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, a := range r.s.accounts {
		if a.AssociationID == associationID {
			n++
		}
	}
	return n, nil
}

func (r *accountRepo) Create(_ context.Context, _ repository.DBTX, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.accounts[a.Code]; exists {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	stored := *cloneAccount(*a)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	r.s.accounts[a.Code] = stored
	return nil
}

func (r *accountRepo) Patch(_ context.Context, _ repository.DBTX, code string, p domain.AccountPatch) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[code]
	if !ok {
		return nil, nil
	}
	if p.Enabled != nil {
		a.Enabled = *p.Enabled
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	a.UpdatedAt = r.s.now()
	r.s.accounts[code] = a
	return cloneAccount(a), nil
}

func (r *accountRepo) SetCredential(_ context.Context, _ repository.DBTX, code, credential string, resetAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[code]
	if !ok {
		return domain.ErrNotFound("account", code)
	}
	a.Credential = credential
	if resetAt != nil {
		t := *resetAt
		a.LastPinResetAt = &t
	}
	a.UpdatedAt = r.s.now()
	r.s.accounts[code] = a
	return nil
}

func (r *accountRepo) Delete(_ context.Context, _ repository.DBTX, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[code]; !ok {
		return false, nil
	}
	delete(r.s.accounts, code)
	return true, nil
}

func (r *accountRepo) DistinctAssociationIDs(_ context.Context, _ repository.DBTX) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, a := range r.s.accounts {
		if a.AssociationID != "" && !seen[a.AssociationID] {
			seen[a.AssociationID] = true
			out = append(out, a.AssociationID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func cloneAccount(a domain.Account) *domain.Account {
	if a.LastPinResetAt != nil {
		t := *a.LastPinResetAt
		a.LastPinResetAt = &t
	}
	return &a
}

// --- associations ---

type associationRepo struct{ s *Store }

func (r *associationRepo) FindByID(_ context.Context, _ repository.DBTX, id string) (*domain.Association, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.associations[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *associationRepo) List(_ context.Context, _ repository.DBTX) ([]domain.Association, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Association, 0, len(r.s.associations))
	for _, a := range r.s.associations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *associationRepo) Exists(_ context.Context, _ repository.DBTX, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.associations[id]
	return ok, nil
}

func (r *associationRepo) UpsertBatch(_ context.Context, _ repository.DBTX, items []domain.Association) error {
	if len(items) > repository.BatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(items), repository.BatchSize)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	for _, a := range items {
		if prev, ok := r.s.associations[a.ID]; ok {
			a.CreatedAt = prev.CreatedAt
		} else {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		r.s.associations[a.ID] = a
	}
	return nil
}

// --- active hunts ---

type activeHuntRepo struct{ s *Store }

func (r *activeHuntRepo) ListByAssociation(_ context.Context, _ repository.DBTX, associationID string) ([]domain.ActiveHunt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.ActiveHunt
	for _, h := range r.s.activeHunts {
		if h.AssociationID == associationID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *activeHuntRepo) Upsert(_ context.Context, _ repository.DBTX, h *domain.ActiveHunt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activeHunts[h.HunterID] = *h
	return nil
}

func (r *activeHuntRepo) DeleteByOwner(_ context.Context, _ repository.DBTX, hunterID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.activeHunts[hunterID]; !ok {
		return false, nil
	}
	delete(r.s.activeHunts, hunterID)
	return true, nil
}

// --- hunt logs ---

type huntLogRepo struct{ s *Store }

func (r *huntLogRepo) List(_ context.Context, _ repository.DBTX, f domain.HuntLogFilter) ([]domain.HuntLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.HuntLog
	for _, l := range r.s.huntLogs {
		if l.AssociationID != f.AssociationID {
			continue
		}
		if f.From != nil && l.FinishedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && l.FinishedAt.After(*f.To) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	if limit := domain.ClampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *huntLogRepo) ListFinishedBetween(_ context.Context, _ repository.DBTX, associationID string, from, to time.Time) ([]domain.HuntLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.HuntLog
	for _, l := range r.s.huntLogs {
		if l.AssociationID == associationID && !l.FinishedAt.Before(from) && l.FinishedAt.Before(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *huntLogRepo) CountCreatedSince(_ context.Context, _ repository.DBTX, associationID string, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, l := range r.s.huntLogs {
		if l.AssociationID == associationID && !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *huntLogRepo) Create(_ context.Context, _ repository.DBTX, l *domain.HuntLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.huntLogs {
		if existing.ID == l.ID {
			return repository.ErrDuplicate
		}
	}
	stored := *l
	stored.HarvestItems = append([]domain.HarvestItem(nil), l.HarvestItems...)
	stored.PendingItems = append([]domain.PendingItem(nil), l.PendingItems...)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.s.now()
	}
	r.s.huntLogs = append(r.s.huntLogs, stored)
	return nil
}

// --- points ---

type pointRepo struct{ s *Store }

func (r *pointRepo) ListByAssociation(_ context.Context, _ repository.DBTX, associationID string) ([]domain.Point, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Point
	for _, p := range r.s.points {
		if p.AssociationID == associationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].PointID < out[j].PointID
	})
	return out, nil
}

func (r *pointRepo) UpsertBatch(_ context.Context, _ repository.DBTX, points []domain.Point) error {
	if len(points) > repository.BatchSize {
		return fmt.Errorf("batch of %d exceeds limit %d", len(points), repository.BatchSize)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	for _, p := range points {
		key := p.AssociationID + "\x00" + p.PointID
		prev, ok := r.s.points[key]
		if !ok {
			p.CreatedAt = now
			p.UpdatedAt = now
			r.s.points[key] = p
			continue
		}
		prev.LDName = keepString(p.LDName, prev.LDName)
		prev.Name = keepString(p.Name, prev.Name)
		prev.Type = keepString(p.Type, prev.Type)
		prev.Notes = keepString(p.Notes, prev.Notes)
		prev.Source = keepString(p.Source, prev.Source)
		prev.Status = domain.PointStatus(keepString(string(p.Status), string(prev.Status)))
		if p.Lat != nil {
			prev.Lat = p.Lat
		}
		if p.Lng != nil {
			prev.Lng = p.Lng
		}
		prev.UpdatedAt = now
		r.s.points[key] = prev
	}
	return nil
}

func keepString(next, prev string) string {
	if strings.TrimSpace(next) == "" {
		return prev
	}
	return next
}

// --- quota plans ---

type quotaPlanRepo struct{ s *Store }

func planKey(associationID string, year int) string {
	return fmt.Sprintf("%s_%d", associationID, year)
}

func (r *quotaPlanRepo) Find(_ context.Context, _ repository.DBTX, associationID string, year int) (*domain.QuotaPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plans[planKey(associationID, year)]
	if !ok {
		return nil, nil
	}
	p.Items = append([]domain.LineItem(nil), p.Items...)
	return &p, nil
}

func (r *quotaPlanRepo) Replace(_ context.Context, _ repository.DBTX, p *domain.QuotaPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *p
	stored.Items = append([]domain.LineItem(nil), p.Items...)
	r.s.plans[planKey(p.AssociationID, p.Year)] = stored
	return nil
}

// --- login attempts ---

type loginAttemptRepo struct{ s *Store }

func (r *loginAttemptRepo) Record(_ context.Context, _ repository.DBTX, code, ip string, success bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	cutoff := now.Add(-r.s.retention)
	kept := r.s.attempts[:0]
	for _, a := range r.s.attempts {
		if a.at.After(cutoff) {
			kept = append(kept, a)
		}
	}
	clear(r.s.attempts[len(kept):])
	r.s.attempts = append(kept, attempt{code: code, ip: ip, success: success, at: now})
	return nil
}

func (r *loginAttemptRepo) CountFailuresSince(_ context.Context, _ repository.DBTX, code string, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, a := range r.s.attempts {
		if a.code == code && !a.success && a.at.After(since) {
			n++
		}
	}
	return n, nil
}
