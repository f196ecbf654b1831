package quota

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rog/backend/internal/domain"
)

// NoPercent is shown when the plan for a row is zero.
const NoPercent = "—"

// YearRange returns [Jan 1 of year, Jan 1 of year+1) in loc.
func YearRange(year int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(1, 0, 0)
}

// Percent renders n/d as a rounded percentage.
func Percent(n, d float64) string {
	if d <= 0 {
		return NoPercent
	}
	return fmt.Sprintf("%d%%", int64(math.Round(n/d*100)))
}

// Tally sums harvest and pending counts per key. Items with unusable counts
// are ignored; harvest items without a key are ignored, pending items
// without one are collected under PendingOtherKey.
func Tally(logs []domain.HuntLog) (harvested, pending map[string]float64) {
	harvested = make(map[string]float64)
	pending = make(map[string]float64)
	for _, l := range logs {
		for _, it := range l.HarvestItems {
			key := strings.TrimSpace(it.Key)
			n, ok := it.Count.Positive()
			if key == "" || !ok {
				continue
			}
			harvested[key] += n
		}
		for _, it := range l.PendingItems {
			key := strings.TrimSpace(it.Key)
			if key == "" {
				key = domain.PendingOtherKey
			}
			n, ok := it.Count.Positive()
			if !ok {
				continue
			}
			pending[key] += n
		}
	}
	return harvested, pending
}

// Reconcile builds one view row per plan item, in plan order.
func Reconcile(items []domain.LineItem, logs []domain.HuntLog) []domain.QuotaViewRow {
	harvested, pending := Tally(logs)

	rows := make([]domain.QuotaViewRow, 0, len(items))
	for _, it := range items {
		executed := harvested[it.Key]
		rows = append(rows, domain.QuotaViewRow{
			Key:        it.Key,
			Species:    it.Species,
			ClassLabel: it.ClassLabel,
			Plan:       it.Plan,
			Executed:   executed,
			Pending:    pending[it.Key],
			Total:      executed,
			Percent:    Percent(executed, it.Plan),
		})
	}
	return rows
}
