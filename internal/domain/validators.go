package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Plan years accepted by the import and the view.
const (
	MinPlanYear = 2020
	MaxPlanYear = 2100
)

var (
	codeRegex  = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)
	assocRegex = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)
)

// ValidateCode checks an account code (the login identifier).
func ValidateCode(code string) error {
	if code == "" {
		return fmt.Errorf("code is required")
	}
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("invalid code format")
	}
	return nil
}

// ValidateAssociationID checks an association id. Ids become part of
// document keys, so only a safe subset of characters is allowed.
func ValidateAssociationID(id string) error {
	if id == "" {
		return fmt.Errorf("ldId is required")
	}
	if !assocRegex.MatchString(id) {
		return fmt.Errorf("invalid ldId format: %s", id)
	}
	return nil
}

// ValidateYear checks that a plan year is within range.
func ValidateYear(year int) error {
	if year < MinPlanYear || year > MaxPlanYear {
		return ErrInvalidYear(year)
	}
	return nil
}

// ParseYear parses a query parameter into a validated year.
func ParseYear(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrValidation(fmt.Sprintf("invalid year %q", raw))
	}
	if err := ValidateYear(year); err != nil {
		return 0, err
	}
	return year, nil
}

// ValidateCoordinates checks a latitude/longitude pair.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range: %v", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude out of range: %v", lng)
	}
	return nil
}
