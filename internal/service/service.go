// Package service implements the association-scoped operations behind the
// HTTP handlers. Every operation takes the caller's identity and works on
// the caller's current association only.
package service

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/rog/backend/internal/domain"
)

// requireAssociation returns the caller's association id.
func requireAssociation(id domain.Identity) (string, error) {
	ldID := strings.TrimSpace(id.AssociationID)
	if ldID == "" {
		return "", domain.ErrValidation("missing ldId in token")
	}
	return ldID, nil
}

// sortByName orders items by a Slovenian collation of the key, so that
// Č, Š and Ž sort after C, S and Z.
func sortByName[T any](items []T, key func(T) string) {
	c := collate.New(language.Slovenian, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(key(items[i]), key(items[j])) < 0
	})
}
