package domain

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TotalClassToken is the class token used when a line item has no class label.
const TotalClassToken = "SKUPAJ"

var (
	textPolicy    = bluemonday.StrictPolicy()
	whitespaceRe  = regexp.MustCompile(`\s+`)
	keyInvalidRe  = regexp.MustCompile(`[^A-Z0-9_]+`)
	typeInvalidRe = regexp.MustCompile(`[^a-z0-9_]+`)
	underscoresRe = regexp.MustCompile(`_+`)

	// Letters with no canonical decomposition.
	strokeLetters = strings.NewReplacer(
		"Đ", "D", "đ", "d",
		"Ł", "L", "ł", "l",
		"Ø", "O", "ø", "o",
		"ß", "ss",
	)
)

// FoldDiacritics strips combining marks so that "Čšž" becomes "Csz".
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strokeLetters.Replace(out)
}

func keyToken(s string) string {
	s = strings.ToUpper(FoldDiacritics(strings.TrimSpace(s)))
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = keyInvalidRe.ReplaceAllString(s, "_")
	s = underscoresRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// DeriveKey joins a species and class label into the token that matches plan
// line items against harvest items, e.g. ("srna", "mladiči") -> "SRNA__MLADICI".
// An empty class label yields the total token.
func DeriveKey(species, classLabel string) string {
	class := keyToken(classLabel)
	if class == "" {
		class = TotalClassToken
	}
	return keyToken(species) + "__" + class
}

// NormalizePointType lower-cases and folds a point category, e.g.
// "Lovska koča" -> "lovska_koca".
func NormalizePointType(s string) string {
	s = FoldDiacritics(strings.ToLower(strings.TrimSpace(s)))
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = typeInvalidRe.ReplaceAllString(s, "_")
	s = underscoresRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// CleanText trims free text, drops null bytes and any markup.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(strings.TrimSpace(s))))
}
