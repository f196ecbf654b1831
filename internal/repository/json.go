package repository

import (
	"encoding/json"
	"fmt"
)

// jsonb encodes a nested list for a JSONB column. A nil slice is stored as [].
func jsonb[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return b, nil
}
