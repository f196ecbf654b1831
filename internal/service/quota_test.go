package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/quota"
	"github.com/rog/backend/internal/repository"
)

func planWorkbook(t *testing.T) string {
	t.Helper()
	rows := [][]interface{}{
		{"Realizacija odvzema"},
		{"Divjad", "Razred", "Načrt", "Izvršeno"},
		{"Srna", "mladiči", 10, 2},
		{"", "lanščaki", 5},
		{"Jelenjad", "", 4},
	}
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newQuotaService(f *fixture) *QuotaService {
	return NewQuotaService(nil, f.repos.QuotaPlans, f.repos.HuntLogs, ljubljana, nil, f.logger)
}

func TestQuotaService_ImportAndView(t *testing.T) {
	f := newFixture(t)
	svc := newQuotaService(f)
	ctx := context.Background()
	mod := identity("mod", "ld_bled", domain.RoleModerator)

	n, err := svc.ImportWorkbook(ctx, mod, 2024, PlanUpload{ContentBase64: planWorkbook(t)})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	plan, err := f.repos.QuotaPlans.Find(ctx, nil, "ld_bled", 2024)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, domain.DefaultPlanFilename, plan.SourceFilename)
	assert.Equal(t, "Realizacija odvzema – ld_bled, 2024", plan.Title)

	logs := []domain.HuntLog{
		{
			ID: "a", FinishedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			HarvestItems: []domain.HarvestItem{{Key: "SRNA__MLADICI", Count: domain.NewNumber(3)}},
			PendingItems: []domain.PendingItem{{Key: "JELENJAD__SKUPAJ", Count: domain.NewNumber(1)}},
		},
		{
			// Dec 31 23:30 UTC is already 2025 in Ljubljana.
			ID: "b", FinishedAt: time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC),
			HarvestItems: []domain.HarvestItem{{Key: "SRNA__MLADICI", Count: domain.NewNumber(5)}},
		},
		{
			ID: "c", FinishedAt: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
			HarvestItems: []domain.HarvestItem{
				{Key: "SRNA__MLADICI", Count: domain.ParseNumber("abc")},
				{Key: "SRNA__LANSCAKI", Count: domain.NewNumber(-2)},
			},
		},
	}
	for _, l := range logs {
		l.AssociationID = "ld_bled"
		l.HunterID = "h"
		l.StartedAt = l.FinishedAt
		require.NoError(t, f.repos.HuntLogs.Create(ctx, nil, &l))
	}

	view, err := svc.View(ctx, identity("h", "ld_bled", domain.RoleMember), 2024)
	require.NoError(t, err)
	require.NotNil(t, view.UpdatedAt)
	assert.Equal(t, "ld_bled", view.AssociationID)
	assert.Equal(t, []domain.QuotaViewRow{
		{Key: "SRNA__MLADICI", Species: "Srna", ClassLabel: "mladiči", Plan: 10, Executed: 3, Total: 3, Percent: "30%"},
		{Key: "SRNA__LANSCAKI", Species: "Srna", ClassLabel: "lanščaki", Plan: 5, Percent: "0%"},
		{Key: "JELENJAD__SKUPAJ", Species: "Jelenjad", ClassLabel: quota.DefaultClassLabel, Plan: 4, Pending: 1, Percent: "0%"},
	}, view.Rows)
}

func TestQuotaService_ImportReplacesPlan(t *testing.T) {
	f := newFixture(t)
	svc := newQuotaService(f)
	ctx := context.Background()
	mod := identity("mod", "ld_bled", domain.RoleModerator)

	require.NoError(t, f.repos.QuotaPlans.Replace(ctx, nil, &domain.QuotaPlan{
		AssociationID: "ld_bled", Year: 2024,
		Items: []domain.LineItem{{Key: "MEDVED__SKUPAJ", Species: "Medved", Plan: 1}},
	}))

	_, err := svc.ImportWorkbook(ctx, mod, 2024, PlanUpload{Filename: "odvzem.xlsx", ContentBase64: planWorkbook(t)})
	require.NoError(t, err)

	plan, err := f.repos.QuotaPlans.Find(ctx, nil, "ld_bled", 2024)
	require.NoError(t, err)
	assert.Equal(t, "odvzem.xlsx", plan.SourceFilename)
	for _, it := range plan.Items {
		assert.NotEqual(t, "MEDVED__SKUPAJ", it.Key)
	}
}

func TestQuotaService_Errors(t *testing.T) {
	f := newFixture(t)
	svc := newQuotaService(f)
	ctx := context.Background()
	mod := identity("mod", "ld_bled", domain.RoleModerator)

	_, err := svc.ImportWorkbook(ctx, mod, 2019, PlanUpload{ContentBase64: planWorkbook(t)})
	requireStatus(t, err, 400)

	_, err = svc.ImportWorkbook(ctx, mod, 2024, PlanUpload{})
	requireStatus(t, err, 400)

	_, err = svc.ImportWorkbook(ctx, mod, 2024, PlanUpload{ContentBase64: base64.StdEncoding.EncodeToString([]byte("not a workbook"))})
	requireStatus(t, err, 400)

	_, err = svc.View(ctx, mod, 2101)
	requireStatus(t, err, 400)
}

func TestQuotaService_ViewWithoutPlan(t *testing.T) {
	f := newFixture(t)
	view, err := newQuotaService(f).View(context.Background(), identity("h", "ld_bled", domain.RoleMember), 2025)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTitle("ld_bled", 2025), view.Title)
	assert.Nil(t, view.UpdatedAt)
	assert.NotNil(t, view.Rows)
	assert.Empty(t, view.Rows)
}

func TestPointService_Import(t *testing.T) {
	f := newFixture(t)
	svc := NewPointService(nil, f.repos.Points, nil, f.logger)
	ctx := context.Background()
	mod := identity("mod", "ld_bled", domain.RoleModerator)

	_, err := svc.Import(ctx, mod, nil)
	requireStatus(t, err, 400)

	res, err := svc.Import(ctx, mod, []domain.PointImportRow{
		{PointID: "P1", Name: "Visoka preža", Type: "Visoka preža", Lat: domain.ParseNumber("46,36"), Lng: domain.NewNumber(14.09)},
		{PointID: "", Name: "no id"},
		{PointID: "P2", Name: "Koča", Type: "koca", Status: "INACTIVE"},
		{PointID: "P1", Name: "Preža ob gozdu", Type: "preza"},
		{PointID: "P3", Name: "Bad", Lat: domain.NewNumber(123), Lng: domain.NewNumber(14)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 3, res.Skipped)

	points, err := svc.List(ctx, mod)
	require.NoError(t, err)
	require.Len(t, points, 2)

	byID := map[string]domain.Point{}
	for _, p := range points {
		byID[p.PointID] = p
	}
	p1 := byID["P1"]
	assert.Equal(t, "Preža ob gozdu", p1.Name, "later duplicate wins")
	assert.Equal(t, domain.PointActive, p1.Status, "status defaults to active")
	assert.Equal(t, domain.PointInactive, byID["P2"].Status)
	assert.Equal(t, "ld_bled/P1", p1.ID)

	empty, err := svc.List(ctx, identity("x", "ld_other", domain.RoleMember))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPointService_ImportCaseDistinctAssociations(t *testing.T) {
	f := newFixture(t)
	svc := NewPointService(nil, f.repos.Points, nil, f.logger)
	ctx := context.Background()
	upper := identity("mod", "LD1", domain.RoleModerator)
	lower := identity("mod", "ld1", domain.RoleModerator)

	for _, id := range []domain.Identity{upper, lower} {
		res, err := svc.Import(ctx, id, []domain.PointImportRow{{PointID: "p1", Name: "Preža", Type: "preza"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Processed)
	}

	a, err := svc.List(ctx, upper)
	require.NoError(t, err)
	b, err := svc.List(ctx, lower)
	require.NoError(t, err)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].ID, b[0].ID)
}

func TestPointService_ImportChunks(t *testing.T) {
	f := newFixture(t)
	svc := NewPointService(nil, f.repos.Points, nil, f.logger)
	ctx := context.Background()

	rows := make([]domain.PointImportRow, repository.BatchSize+50)
	for i := range rows {
		rows[i] = domain.PointImportRow{PointID: fmt.Sprintf("P%04d", i), Name: "Točka", Type: "preza"}
	}
	res, err := svc.Import(ctx, identity("mod", "ld_bled", domain.RoleModerator), rows)
	require.NoError(t, err)
	assert.Equal(t, len(rows), res.Processed)

	points, err := svc.List(ctx, identity("mod", "ld_bled", domain.RoleModerator))
	require.NoError(t, err)
	assert.Len(t, points, len(rows))
}
