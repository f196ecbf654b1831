package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// LocationMode is how a hunt session discloses where the hunter is.
type LocationMode string

const (
	LocationExact       LocationMode = "exact"
	LocationApprox      LocationMode = "approx"
	LocationPrivateText LocationMode = "private_text"
)

// Location holds the position of a session or a finished hunt. Exactly one
// representation is set, matching Mode.
type Location struct {
	Mode          LocationMode `json:"locationMode"`
	Name          string       `json:"locationName,omitempty"`
	PoiID         string       `json:"poiId,omitempty"`
	PoiName       string       `json:"poiName,omitempty"`
	PoiType       string       `json:"poiType,omitempty"`
	Lat           *float64     `json:"lat"`
	Lng           *float64     `json:"lng"`
	ApproxLat     *float64     `json:"approxLat"`
	ApproxLng     *float64     `json:"approxLng"`
	ApproxRadiusM *float64     `json:"approxRadiusM"`
}

// Validate enforces the one-representation rule.
func (l Location) Validate() error {
	exact := l.Lat != nil || l.Lng != nil
	approx := l.ApproxLat != nil || l.ApproxLng != nil || l.ApproxRadiusM != nil

	switch l.Mode {
	case LocationExact:
		if l.Lat == nil || l.Lng == nil {
			return fmt.Errorf("exact location requires lat and lng")
		}
		if approx {
			return fmt.Errorf("exact location must not carry approximate coordinates")
		}
		return ValidateCoordinates(*l.Lat, *l.Lng)
	case LocationApprox:
		if l.ApproxLat == nil || l.ApproxLng == nil || l.ApproxRadiusM == nil {
			return fmt.Errorf("approximate location requires approxLat, approxLng and approxRadiusM")
		}
		if exact {
			return fmt.Errorf("approximate location must not carry exact coordinates")
		}
		if *l.ApproxRadiusM <= 0 {
			return fmt.Errorf("approxRadiusM must be positive")
		}
		return ValidateCoordinates(*l.ApproxLat, *l.ApproxLng)
	case LocationPrivateText:
		if exact || approx {
			return fmt.Errorf("private location must not carry coordinates")
		}
		if l.Name == "" {
			return fmt.Errorf("private location requires locationName")
		}
		return nil
	default:
		return fmt.Errorf("invalid locationMode: %q", l.Mode)
	}
}

// Clean normalises the free-text fields.
func (l Location) Clean() Location {
	l.Name = CleanText(l.Name)
	l.PoiName = CleanText(l.PoiName)
	l.PoiType = NormalizePointType(l.PoiType)
	return l
}

// ActiveHunt is an in-progress session. There is at most one per hunter;
// HunterID doubles as the record id.
type ActiveHunt struct {
	HunterID      string `json:"hunterId"`
	HunterName    string `json:"hunterName"`
	AssociationID string `json:"ldId"`
	Location
	StartedAt time.Time `json:"startedAt"`
}

// Validate checks a session before it is stored.
func (h *ActiveHunt) Validate() error {
	if h.HunterID == "" {
		return fmt.Errorf("hunterId is required")
	}
	if h.AssociationID == "" {
		return fmt.Errorf("ldId is required")
	}
	if h.Mode == "" {
		h.Mode = LocationPrivateText
	}
	return h.Location.Validate()
}

// HarvestItem is one line of a finished hunt: a derived key and a count.
// Pending items share the shape; their key may be empty.
type HarvestItem struct {
	Key     string `json:"key"`
	Species string `json:"species,omitempty"`
	Class   string `json:"classLabel,omitempty"`
	Count   Number `json:"count"`
}

// PendingItem is a harvest awaiting confirmation.
type PendingItem = HarvestItem

// PendingOtherKey collects pending items that carry no key.
const PendingOtherKey = "PENDING_OTHER"

// HuntLog is an immutable record of a finished hunt.
type HuntLog struct {
	ID            string `json:"id"`
	AssociationID string `json:"ldId"`
	HunterID      string `json:"hunterId"`
	HunterName    string `json:"hunterName"`
	Species       string `json:"species,omitempty"`
	Harvest       bool   `json:"harvest"`
	Notes         string `json:"notes,omitempty"`
	EndedReason   string `json:"endedReason,omitempty"`
	Location
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
	CreatedAt    time.Time     `json:"createdAt"`
	HarvestItems []HarvestItem `json:"harvestItems"`
	PendingItems []PendingItem `json:"pendingItems"`
}

// Validate checks a log before it is stored.
func (l *HuntLog) Validate() error {
	if l.AssociationID == "" {
		return fmt.Errorf("ldId is required")
	}
	if l.HunterID == "" {
		return fmt.Errorf("hunterId is required")
	}
	if l.StartedAt.IsZero() || l.FinishedAt.IsZero() {
		return fmt.Errorf("startedAt and finishedAt are required")
	}
	if l.FinishedAt.Before(l.StartedAt) {
		return fmt.Errorf("finishedAt must not be before startedAt")
	}
	if l.Mode != "" {
		if err := l.Location.Validate(); err != nil {
			return err
		}
	}
	for i, item := range l.HarvestItems {
		if item.Key == "" {
			return fmt.Errorf("harvestItems[%d]: key is required", i)
		}
	}
	return nil
}

// HuntLogFilter selects logs by finish time.
type HuntLogFilter struct {
	AssociationID string
	From          *time.Time
	To            *time.Time
	Limit         int
}

// Hunt log list limits.
const (
	DefaultHuntLogLimit = 500
	MaxHuntLogLimit     = 2000
)

// ClampLimit applies the default and the maximum list size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHuntLogLimit
	}
	if limit > MaxHuntLogLimit {
		return MaxHuntLogLimit
	}
	return limit
}

// DecodeHarvestItems decodes a stored item list. Malformed JSON is an error;
// unusable counts inside well-formed items are kept for the caller to skip.
func DecodeHarvestItems(raw []byte) ([]HarvestItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []HarvestItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode harvest items: %w", err)
	}
	return items, nil
}

// DecodePendingItems decodes a stored pending item list.
func DecodePendingItems(raw []byte) ([]PendingItem, error) {
	items, err := DecodeHarvestItems(raw)
	if err != nil {
		return nil, fmt.Errorf("decode pending items: %w", err)
	}
	return items, nil
}
