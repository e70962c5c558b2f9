// Package normalize canonicalizes SKUs and part numbers for duplicate matching.
package normalize

import (
	"strings"
	"unicode"
)

// MinTokenLength is the shortest normalized value considered for exact
// matching. Shorter tokens produce excessive false-positive matches.
const MinTokenLength = 3

// Normalize strips every character outside [A-Za-z0-9] and lowercases the
// remainder. Empty input yields an empty string. Idempotent.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NormalizeList maps each element through Normalize and drops results shorter
// than MinTokenLength.
func NormalizeList(inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, s := range inputs {
		n := Normalize(s)
		if len(n) >= MinTokenLength {
			out = append(out, n)
		}
	}
	return out
}

// NameTokens splits a display name on non-alphanumeric boundaries, normalizes
// each token and keeps those at least MinTokenLength long. Used both for fuzzy
// name comparison and for candidate bucketing, so the two stay in agreement.
func NameTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= MinTokenLength {
			out = append(out, f)
		}
	}
	return out
}
