// Package quota turns an uploaded harvest plan workbook into line items and
// reconciles a plan against finished hunts.
package quota

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rog/backend/internal/domain"
)

// Column positions in the plan sheet.
const (
	colSpecies  = 0
	colClass    = 1
	colPlan     = 2
	colExecuted = 3
	colTotal    = 13
	colPercent  = 14
)

// DefaultClassLabel is recorded for rows without a class label.
const DefaultClassLabel = "skupaj"

// ParseRows walks a headerless cell matrix. A species name in the first
// column carries forward to the following rows; title, header and footer
// rows are skipped.
func ParseRows(rows [][]string) []domain.LineItem {
	var (
		species string
		items   []domain.LineItem
	)
	for _, r := range rows {
		s0 := strings.TrimSpace(cell(r, colSpecies))
		s1 := strings.TrimSpace(cell(r, colClass))
		lower := strings.ToLower(s0)

		if lower == "divjad" {
			continue
		}
		if s0 != "" && !isMetadataRow(lower) {
			species = s0
		}

		plan := domain.ParseNumber(cell(r, colPlan))
		executed := domain.ParseNumber(cell(r, colExecuted))
		total := domain.ParseNumber(cell(r, colTotal))
		percent := domain.ParseNumber(cell(r, colPercent))

		if species == "" {
			continue
		}
		if s1 == "" && !plan.Valid && !executed.Valid && !total.Valid && !percent.Valid {
			continue
		}

		class := s1
		if class == "" {
			class = DefaultClassLabel
		}
		items = append(items, domain.LineItem{
			Key:           domain.DeriveKey(species, class),
			Species:       species,
			ClassLabel:    class,
			Plan:          plan.Value,
			ExecutedExcel: executed.Value,
			PercentExcel:  percent.Ptr(),
			TotalExcel:    total.Ptr(),
		})
	}
	return items
}

func isMetadataRow(lower string) bool {
	return lower == "realizacija odvzema" ||
		strings.HasPrefix(lower, "datum zadnjega") ||
		strings.HasPrefix(lower, "datum zadnje")
}

func cell(r []string, i int) string {
	if i < len(r) {
		return r[i]
	}
	return ""
}

// ParseWorkbook reads the first sheet of an xlsx workbook.
func ParseWorkbook(r io.Reader) ([]domain.LineItem, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.ErrEmptyUpload("unreadable workbook").WithDetail(err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrEmptyUpload("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, domain.ErrEmptyUpload("unreadable sheet").WithDetail(err.Error())
	}
	return ParseRows(rows), nil
}

// DecodeUpload decodes a base64 upload body. Standard and URL alphabets are
// accepted, with or without padding, and a data URL prefix is dropped.
func DecodeUpload(b64 string) ([]byte, error) {
	b64 = strings.TrimSpace(b64)
	if i := strings.Index(b64, ";base64,"); i >= 0 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+len(";base64,"):]
	}
	if b64 == "" {
		return nil, domain.ErrEmptyUpload("missing contentBase64")
	}
	b64 = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, b64)

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(b64); err == nil {
			if len(data) == 0 {
				break
			}
			return data, nil
		}
	}
	return nil, domain.ErrEmptyUpload("contentBase64 is not valid base64")
}

// ParseUpload decodes a base64 workbook and parses it.
func ParseUpload(b64 string) ([]domain.LineItem, error) {
	data, err := DecodeUpload(b64)
	if err != nil {
		return nil, err
	}
	items, err := ParseWorkbook(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return items, nil
}
