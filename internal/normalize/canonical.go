// ABOUTME: Canonical name folding for entity deduplication
// ABOUTME: Trims, lowercases, strips diacritics and collapses whitespace
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical folds a display name into the comparison key used for uniqueness.
// "Sócrates", "socrates" and " SOCRATES " all fold to "socrates".
func Canonical(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// DisplayName trims and collapses whitespace but keeps case and accents
func DisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
