// Package importer reads the bulk-load files used to seed associations and
// map points.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rog/backend/internal/domain"
)

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// WriteChunked calls write once per chunk and returns the number of items
// written before the first failure. Earlier chunks stay committed.
func WriteChunked[T any](ctx context.Context, items []T, size int, write func(context.Context, []T) error) (int, error) {
	written := 0
	for i, chunk := range Chunk(items, size) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := write(ctx, chunk); err != nil {
			return written, fmt.Errorf("chunk %d: %w", i, err)
		}
		written += len(chunk)
	}
	return written, nil
}

type associationRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Region  string `json:"region"`
	KMLFile string `json:"kmlFile"`
	Enabled *bool  `json:"enabled"`
}

// ReadAssociationsJSON reads a JSON array of associations. Entries without
// an id or a name are skipped and counted.
func ReadAssociationsJSON(r io.Reader) ([]domain.Association, int, error) {
	var records []associationRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, 0, fmt.Errorf("associations file must be a JSON array: %w", err)
	}

	var (
		out     []domain.Association
		skipped int
	)
	for _, rec := range records {
		a := domain.Association{
			ID:      strings.TrimSpace(rec.ID),
			Name:    domain.CleanText(rec.Name),
			Region:  domain.CleanText(rec.Region),
			KMLFile: strings.TrimSpace(rec.KMLFile),
			Enabled: rec.Enabled == nil || *rec.Enabled,
		}
		if a.ID == "" || a.Name == "" || domain.ValidateAssociationID(a.ID) != nil {
			skipped++
			continue
		}
		out = append(out, a)
	}
	return out, skipped, nil
}

// PointsResult is the outcome of reading a points workbook.
type PointsResult struct {
	Points         []domain.Point
	AssociationIDs []string
	Skipped        int
}

// ReadPointsWorkbook reads the first sheet of a points workbook. The first
// row holds headers; a trailing "*" marks required columns and is ignored.
// When onlyLD is set, rows of other associations are left out. Rows repeating
// an (association, point id) pair replace the earlier row.
func ReadPointsWorkbook(r io.Reader, onlyLD string) (*PointsResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return ParsePointRows(rows, strings.TrimSpace(onlyLD)), nil
}

// ParsePointRows applies the points import rules to a cell matrix whose
// first row is the header.
func ParsePointRows(rows [][]string, onlyLD string) *PointsResult {
	res := &PointsResult{}
	if len(rows) == 0 {
		return res
	}
	cols := headerIndex(rows[0])
	get := func(row []string, names ...string) string {
		for _, n := range names {
			if i, ok := cols[n]; ok && i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	index := make(map[string]int)
	seenLD := make(map[string]bool)
	for _, row := range rows[1:] {
		ldID := get(row, "ldid")
		if ldID == "" || (onlyLD != "" && ldID != onlyLD) {
			continue
		}

		in := domain.PointImportRow{
			PointID: get(row, "pointid"),
			LDName:  get(row, "ld ime", "ldname"),
			Name:    get(row, "name"),
			Type:    get(row, "type"),
			Lat:     domain.ParseNumber(get(row, "lat")),
			Lng:     domain.ParseNumber(get(row, "lng")),
			Notes:   get(row, "notes"),
			Status:  get(row, "status"),
			Source:  get(row, "source"),
		}
		if domain.NormalizePointType(in.Type) == "" || domain.CleanText(in.Name) == "" || !in.Lat.Valid || !in.Lng.Valid {
			res.Skipped++
			continue
		}
		p, err := in.ToPoint(ldID)
		if err != nil {
			res.Skipped++
			continue
		}

		key := ldID + "\x00" + p.PointID
		if i, ok := index[key]; ok {
			res.Points[i] = *p
			continue
		}
		index[key] = len(res.Points)
		res.Points = append(res.Points, *p)
		if !seenLD[ldID] {
			seenLD[ldID] = true
			res.AssociationIDs = append(res.AssociationIDs, ldID)
		}
	}
	return res
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(h), "*")))
		if name == "" {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}
