package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle produces the comparison key used for every title lookup:
// compatibility-normalized, diacritics removed, case-folded, with punctuation
// collapsed to single spaces.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	// Transformers and casers carry state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripMarks, title)
	if err != nil {
		stripped = norm.NFKC.String(title)
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		if r == '\'' || r == '’' {
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// ContainsPhrase reports whether the normalized needle appears in the normalized
// haystack on word boundaries.
func ContainsPhrase(haystack, needle string) bool {
	h := NormalizeTitle(haystack)
	n := NormalizeTitle(needle)
	if h == "" || n == "" {
		return false
	}
	return strings.Contains(" "+h+" ", " "+n+" ")
}
