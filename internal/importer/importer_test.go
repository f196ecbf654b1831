package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rog/backend/internal/domain"
)

func TestChunk(t *testing.T) {
	items := make([]int, 901)
	chunks := Chunk(items, 400)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 400)
	assert.Len(t, chunks[1], 400)
	assert.Len(t, chunks[2], 101)

	assert.Empty(t, Chunk([]int{}, 400))
}

func TestWriteChunked_StopsAtFirstFailure(t *testing.T) {
	items := make([]int, 10)
	calls := 0
	written, err := WriteChunked(context.Background(), items, 4, func(_ context.Context, chunk []int) error {
		calls++
		if calls == 2 {
			return errors.New("store down")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 4, written)
	assert.Equal(t, 2, calls)
}

func TestReadAssociationsJSON(t *testing.T) {
	in := `[
		{"id": "LD-Bled", "name": "LD Bled", "region": "Gorenjska"},
		{"id": "LD-Kamnik", "name": "LD Kamnik", "enabled": false, "kmlFile": "kamnik.kml"},
		{"id": "", "name": "no id"},
		{"id": "LD-X"}
	]`
	items, skipped, err := ReadAssociationsJSON(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, items, 2)
	assert.True(t, items[0].Enabled)
	assert.Equal(t, "Gorenjska", items[0].Region)
	assert.False(t, items[1].Enabled)
	assert.Equal(t, "kamnik.kml", items[1].KMLFile)

	_, _, err = ReadAssociationsJSON(strings.NewReader(`{"id":"x"}`))
	assert.Error(t, err)
}

func pointRows() [][]string {
	return [][]string{
		{"ldId*", "type*", "name*", "lat*", "lng*", "notes", "status", "source", "pointId", "LD ime"},
		{"bled", "Visoka preža", "Preža 1", "46.1", "14,2", "", "Active", "gps", "P1", "LD Bled"},
		{"bled", "krmišče", "Krmišče", "46.2", "14.3", "", "", "", "P2", ""},
		{"bled", "krmišče", "Krmišče 2", "46.2", "14.3", "", "", "", "P2", ""},
		{"bled", "krmišče", "No id", "46.2", "14.3", "", "", "", "", ""},
		{"bled", "", "No type", "46.2", "14.3", "", "", "", "P3", ""},
		{"bled", "njiva", "No lat", "", "14.3", "", "", "", "P4", ""},
		{"kamnik", "njiva", "Njiva", "46.3", "14.6", "", "retired", "", "K1", ""},
		{"", "njiva", "No ld", "46.3", "14.6", "", "", "", "Z1", ""},
		{"bad/ld", "njiva", "Bad ld", "46.3", "14.6", "", "", "", "Z2", ""},
	}
}

func TestParsePointRows(t *testing.T) {
	res := ParsePointRows(pointRows(), "")
	require.Len(t, res.Points, 3)
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, []string{"bled", "kamnik"}, res.AssociationIDs)

	p1 := res.Points[0]
	assert.Equal(t, "bled/P1", p1.ID)
	assert.Equal(t, "visoka_preza", p1.Type)
	assert.Equal(t, domain.PointActive, p1.Status)
	assert.Equal(t, "LD Bled", p1.LDName)
	require.NotNil(t, p1.Lng)
	assert.InDelta(t, 14.2, *p1.Lng, 1e-9)

	assert.Equal(t, "Krmišče 2", res.Points[1].Name, "later duplicate replaces earlier row")
	assert.Equal(t, "krmisce", res.Points[1].Type)
	assert.Equal(t, domain.PointUnset, res.Points[2].Status)
}

func TestParsePointRows_OnlyLD(t *testing.T) {
	res := ParsePointRows(pointRows(), "kamnik")
	require.Len(t, res.Points, 1)
	assert.Equal(t, "K1", res.Points[0].PointID)
	assert.Equal(t, 0, res.Skipped)
}

func TestReadPointsWorkbook(t *testing.T) {
	f := excelize.NewFile()
	for i, r := range pointRows() {
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := ReadPointsWorkbook(buf, "bled")
	require.NoError(t, err)
	assert.Len(t, res.Points, 2)
}
