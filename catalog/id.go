// Package catalog provides read-only lookup of canonical data records
// (species, moves, abilities, items, conditions, clauses, the type chart)
// by a normalized string Id, plus alias resolution.
package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Id is a normalized (NFKD-folded, lowercased, punctuation-stripped) form of
// a resource name. Two names that differ only by case, accents, or
// punctuation resolve to the same Id.
type Id string

// NewId normalizes a raw name into its stable Id form.
func NewId(name string) Id {
	folded := norm.NFKD.String(name)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			// punctuation, diacritics, and whitespace are stripped
			// entirely rather than collapsed to a separator, matching
			// the reference engine's "lowercased, punctuation-stripped"
			// id scheme (e.g. "Mr. Mime" and "Mr Mime" both become
			// "mrmime").
		}
	}
	return Id(b.String())
}

// String returns the Id's underlying string form.
func (id Id) String() string { return string(id) }

// IsEmpty reports whether the Id normalizes to the empty string.
func (id Id) IsEmpty() bool { return id == "" }
