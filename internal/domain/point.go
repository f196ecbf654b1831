package domain

import (
	"fmt"
	"strings"
	"time"
)

// PointStatus is active, inactive or unset.
type PointStatus string

const (
	PointActive   PointStatus = "active"
	PointInactive PointStatus = "inactive"
	PointUnset    PointStatus = ""
)

// NormalizePointStatus maps free text onto a PointStatus. Unknown values
// become unset.
func NormalizePointStatus(s string) PointStatus {
	switch PointStatus(strings.ToLower(strings.TrimSpace(s))) {
	case PointActive:
		return PointActive
	case PointInactive:
		return PointInactive
	default:
		return PointUnset
	}
}

// Point is a point of interest on the association's map.
type Point struct {
	ID            string      `json:"id"`
	AssociationID string      `json:"ldId"`
	PointID       string      `json:"pointId"`
	LDName        string      `json:"ldName,omitempty"`
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	Lat           *float64    `json:"lat"`
	Lng           *float64    `json:"lng"`
	Notes         string      `json:"notes,omitempty"`
	Status        PointStatus `json:"status"`
	Source        string      `json:"source,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// PointImportRow is one row of a points import. Coordinates arrive as
// numbers or numeric strings.
type PointImportRow struct {
	PointID string `json:"pointId"`
	LDName  string `json:"ldName"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Lat     Number `json:"lat"`
	Lng     Number `json:"lng"`
	Notes   string `json:"notes"`
	Status  string `json:"status"`
	Source  string `json:"source"`
}

// PointDocumentID is the stable id of a point within an association.
// Association ids never contain '/', so the id splits back into the
// exact pair it was built from.
func PointDocumentID(associationID, pointID string) string {
	return associationID + "/" + pointID
}

// ToPoint normalises an import row into a Point owned by the association.
// Rows without a point id, or for a malformed association id, are rejected.
func (r PointImportRow) ToPoint(associationID string) (*Point, error) {
	if err := ValidateAssociationID(associationID); err != nil {
		return nil, err
	}
	pointID := strings.TrimSpace(r.PointID)
	if pointID == "" {
		return nil, fmt.Errorf("pointId is required")
	}
	p := &Point{
		ID:            PointDocumentID(associationID, pointID),
		AssociationID: associationID,
		PointID:       pointID,
		LDName:        CleanText(r.LDName),
		Name:          CleanText(r.Name),
		Type:          NormalizePointType(r.Type),
		Lat:           r.Lat.Ptr(),
		Lng:           r.Lng.Ptr(),
		Notes:         CleanText(r.Notes),
		Status:        NormalizePointStatus(r.Status),
		Source:        CleanText(r.Source),
	}
	if p.Lat != nil && p.Lng != nil {
		if err := ValidateCoordinates(*p.Lat, *p.Lng); err != nil {
			return nil, err
		}
	}
	return p, nil
}
