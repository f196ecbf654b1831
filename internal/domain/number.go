package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a leniently decoded numeric field. Clients send counts and
// coordinates either as JSON numbers or as numeric strings; anything else
// decodes to an invalid Number instead of failing the whole document.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// ParseNumber reads a number from free text. A comma decimal separator,
// surrounding spaces and a trailing percent sign are accepted.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return NewNumber(v)
}

// Positive returns the value when it is a usable count.
func (n Number) Positive() (float64, bool) {
	if !n.Valid || n.Value <= 0 {
		return 0, false
	}
	return n.Value, true
}

// Ptr returns nil for an invalid Number.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = ParseNumber(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		v, err := strconv.ParseFloat(string(b), 64)
		if err == nil {
			*n = NewNumber(v)
		}
	default:
		// Objects, arrays and booleans are well-formed JSON but not numbers.
		var discard any
		return json.Unmarshal(b, &discard)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}
