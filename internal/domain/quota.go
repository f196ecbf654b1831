package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// LineItem is one row of a quota plan.
type LineItem struct {
	Key           string   `json:"key"`
	Species       string   `json:"species"`
	ClassLabel    string   `json:"classLabel"`
	Plan          float64  `json:"plan"`
	ExecutedExcel float64  `json:"executedExcel"`
	PercentExcel  *float64 `json:"percentExcel"`
	TotalExcel    *float64 `json:"totalExcel"`
}

// QuotaPlan is the imported harvest plan of an association for a year.
// It is replaced wholesale on every import.
type QuotaPlan struct {
	AssociationID  string     `json:"ldId"`
	Year           int        `json:"year"`
	Title          string     `json:"title"`
	SourceFilename string     `json:"sourceFilename"`
	ImportedAt     time.Time  `json:"importedAt"`
	Items          []LineItem `json:"items"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// DocumentID is the plan's key in the store.
func (p *QuotaPlan) DocumentID() string {
	return fmt.Sprintf("%s_%d", p.AssociationID, p.Year)
}

// PlanTitle is the human title of a plan.
func PlanTitle(associationID string, year int) string {
	return fmt.Sprintf("Realizacija odvzema – %s, %d", associationID, year)
}

// DefaultPlanFilename is recorded when an upload carries no file name.
const DefaultPlanFilename = "plan.xlsx"

// QuotaViewRow is one reconciled row.
type QuotaViewRow struct {
	Key        string  `json:"key"`
	Species    string  `json:"species"`
	ClassLabel string  `json:"classLabel"`
	Plan       float64 `json:"plan"`
	Executed   float64 `json:"executed"`
	Pending    float64 `json:"pending"`
	Total      float64 `json:"total"`
	Percent    string  `json:"percent"`
}

// QuotaView is the plan of a year reconciled against finished hunts.
type QuotaView struct {
	AssociationID string         `json:"ldId"`
	Year          int            `json:"year"`
	Title         string         `json:"title"`
	UpdatedAt     *time.Time     `json:"updatedAt"`
	Rows          []QuotaViewRow `json:"rows"`
}

// DecodeLineItems decodes stored plan items, failing on malformed JSON or
// items without a key.
func DecodeLineItems(raw []byte) ([]LineItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	for i, it := range items {
		if it.Key == "" {
			return nil, fmt.Errorf("decode line items: item %d has no key", i)
		}
	}
	return items, nil
}
