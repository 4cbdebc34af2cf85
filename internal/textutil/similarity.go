package textutil

import (
	"math"
	"strings"
)

// Tokenize normalizes text and splits it into words, dropping single-rune
// tokens ("x" in "Hunter x Hunter", stray initials).
func Tokenize(text string) []string {
	words := strings.Fields(NormalizeTitle(text))
	kept := words[:0]
	for _, word := range words {
		if len([]rune(word)) > 1 {
			kept = append(kept, word)
		}
	}
	return kept
}

// termCounts is a bag-of-words vector over a title's tokens.
type termCounts map[string]int

func countTerms(text string) termCounts {
	counts := termCounts{}
	for _, token := range Tokenize(text) {
		counts[token]++
	}
	return counts
}

func (c termCounts) magnitude() float64 {
	var sum int
	for _, n := range c {
		sum += n * n
	}
	return math.Sqrt(float64(sum))
}

// cosine is 0 when either side has no tokens.
func cosine(a, b termCounts) float64 {
	ma, mb := a.magnitude(), b.magnitude()
	if ma == 0 || mb == 0 {
		return 0
	}
	var dot int
	for token, n := range a {
		dot += n * b[token]
	}
	return float64(dot) / (ma * mb)
}

// TitleSimilarity scores two titles in [0, 1]. Titles that normalize to the
// same key score exactly 1; otherwise the token cosine is used.
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return cosine(countTerms(na), countTerms(nb))
}
