package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/repository"
)

func TestAccounts_CreateDuplicateKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	repos := NewSet()

	require.NoError(t, repos.Accounts.Create(ctx, nil, &domain.Account{Code: "a", Name: "A", AssociationID: "LD1", Role: domain.RoleMember, Credential: "hash-1"}))
	err := repos.Accounts.Create(ctx, nil, &domain.Account{Code: "a", Name: "B", AssociationID: "LD1", Credential: "hash-2"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := repos.Accounts.FindByCode(ctx, nil, "a")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.Credential)
	assert.Equal(t, "A", got.Name)
}

func TestAccounts_PatchMerges(t *testing.T) {
	ctx := context.Background()
	repos := NewSet()
	require.NoError(t, repos.Accounts.Create(ctx, nil, &domain.Account{Code: "a", Name: "A", AssociationID: "LD1", Role: domain.RoleMember, Enabled: true}))

	disabled := false
	got, err := repos.Accounts.Patch(ctx, nil, "a", domain.AccountPatch{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "A", got.Name)
	assert.Equal(t, domain.RoleMember, got.Role)

	missing, err := repos.Accounts.Patch(ctx, nil, "nobody", domain.AccountPatch{Enabled: &disabled})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccounts_ListSortedAndDistinct(t *testing.T) {
	ctx := context.Background()
	repos := NewSet()
	for _, a := range []domain.Account{
		{Code: "3", Name: "Cene", AssociationID: "LD1"},
		{Code: "1", Name: "Ana", AssociationID: "LD1"},
		{Code: "2", Name: "Bojan", AssociationID: "LD2"},
	} {
		a := a
		require.NoError(t, repos.Accounts.Create(ctx, nil, &a))
	}

	list, err := repos.Accounts.ListByAssociation(ctx, nil, "LD1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)

	ids, err := repos.Accounts.DistinctAssociationIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"LD1", "LD2"}, ids)

	n, err := repos.Accounts.CountByAssociation(ctx, nil, "LD2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := repos.Accounts.Delete(ctx, nil, "2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repos.Accounts.Delete(ctx, nil, "2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPoints_UpsertMergesByPointID(t *testing.T) {
	ctx := context.Background()
	repos := NewSet()
	lat := 46.0

	require.NoError(t, repos.Points.UpsertBatch(ctx, nil, []domain.Point{
		{ID: "LD1/p1", AssociationID: "LD1", PointID: "p1", Name: "Preža", Type: "preza", Lat: &lat, Notes: "stara"},
	}))
	require.NoError(t, repos.Points.UpsertBatch(ctx, nil, []domain.Point{
		{ID: "LD1/p1", AssociationID: "LD1", PointID: "p1", Name: "Preža 2"},
	}))

	list, err := repos.Points.ListByAssociation(ctx, nil, "LD1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Preža 2", list[0].Name)
	assert.Equal(t, "stara", list[0].Notes)
	require.NotNil(t, list[0].Lat)
	assert.Equal(t, 46.0, *list[0].Lat)
}

func TestPoints_BatchLimit(t *testing.T) {
	points := make([]domain.Point, repository.BatchSize+1)
	err := NewSet().Points.UpsertBatch(context.Background(), nil, points)
	assert.Error(t, err)
}

func TestHuntLogs_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repos := NewSet()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repos.HuntLogs.Create(ctx, nil, &domain.HuntLog{
			ID: id, AssociationID: "LD1", HunterID: "h",
			StartedAt: base, FinishedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	from := base.Add(12 * time.Hour)
	logs, err := repos.HuntLogs.List(ctx, nil, domain.HuntLogFilter{AssociationID: "LD1", From: &from})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "c", logs[0].ID)

	logs, err = repos.HuntLogs.List(ctx, nil, domain.HuntLogFilter{AssociationID: "LD1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	between, err := repos.HuntLogs.ListFinishedBetween(ctx, nil, "LD1", base, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Len(t, between, 2)

	assert.ErrorIs(t, repos.HuntLogs.Create(ctx, nil, &domain.HuntLog{ID: "a"}), repository.ErrDuplicate)
}

func TestActiveHunts_OnePerOwner(t *testing.T) {
	ctx := context.Background()
	repos := NewSet()
	t0 := time.Now()

	require.NoError(t, repos.ActiveHunts.Upsert(ctx, nil, &domain.ActiveHunt{HunterID: "h", AssociationID: "LD1", StartedAt: t0}))
	require.NoError(t, repos.ActiveHunts.Upsert(ctx, nil, &domain.ActiveHunt{HunterID: "h", AssociationID: "LD1", StartedAt: t0.Add(time.Minute)}))

	list, err := repos.ActiveHunts.ListByAssociation(ctx, nil, "LD1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	ok, err := repos.ActiveHunts.DeleteByOwner(ctx, nil, "h")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaPlans_Replace(t *testing.T) {
	ctx := context.Background()
	repos := NewSet()

	require.NoError(t, repos.QuotaPlans.Replace(ctx, nil, &domain.QuotaPlan{AssociationID: "LD1", Year: 2024, Items: []domain.LineItem{{Key: "A__B"}, {Key: "C__D"}}}))
	require.NoError(t, repos.QuotaPlans.Replace(ctx, nil, &domain.QuotaPlan{AssociationID: "LD1", Year: 2024, Items: []domain.LineItem{{Key: "A__B"}}}))

	p, err := repos.QuotaPlans.Find(ctx, nil, "LD1", 2024)
	require.NoError(t, err)
	assert.Len(t, p.Items, 1)

	missing, err := repos.QuotaPlans.Find(ctx, nil, "LD1", 2025)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLoginAttempts_CountFailures(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	repos := store.Set()

	require.NoError(t, repos.LoginAttempts.Record(ctx, nil, "a", "1.2.3.4", false))
	require.NoError(t, repos.LoginAttempts.Record(ctx, nil, "a", "1.2.3.4", true))
	require.NoError(t, repos.LoginAttempts.Record(ctx, nil, "b", "1.2.3.4", false))

	n, err := repos.LoginAttempts.CountFailuresSince(ctx, nil, "a", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoginAttempts_PrunedAfterRetention(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SetAttemptRetention(15 * time.Minute)
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	repos := store.Set()

	for range 3 {
		require.NoError(t, repos.LoginAttempts.Record(ctx, nil, "a", "1.2.3.4", false))
	}
	assert.Len(t, store.attempts, 3)

	now = now.Add(10 * time.Minute)
	require.NoError(t, repos.LoginAttempts.Record(ctx, nil, "b", "1.2.3.4", false))
	assert.Len(t, store.attempts, 4, "attempts inside the window are kept")

	now = now.Add(10 * time.Minute)
	require.NoError(t, repos.LoginAttempts.Record(ctx, nil, "b", "1.2.3.4", false))
	assert.Len(t, store.attempts, 2)

	n, err := repos.LoginAttempts.CountFailuresSince(ctx, nil, "a", time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = repos.LoginAttempts.CountFailuresSince(ctx, nil, "b", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
