package corpus

import (
	"unicode"
	"unicode/utf8"
)

// MinTermLength is the minimum number of runes a term must have.
const MinTermLength = 2

// Tokenize splits doc into terms. The rule is fixed because it defines the
// vocabulary: text is lowercased, maximal runs of letters and digits are
// candidate terms, candidates shorter than MinTermLength runes are dropped,
// and every other rune (including invalid UTF-8) is a separator.
func Tokenize(doc string) []string {
	var terms []string
	start := -1
	runes := 0

	flush := func(end int) {
		if start >= 0 && runes >= MinTermLength {
			terms = append(terms, lower(doc[start:end]))
		}
		start, runes = -1, 0
	}

	for i := 0; i < len(doc); {
		r, size := utf8.DecodeRuneInString(doc[i:])
		if r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if start < 0 {
				start = i
			}
			runes++
		} else {
			flush(i)
		}
		i += size
	}
	flush(len(doc))

	return terms
}

// lower folds rune by rune so the result does not depend on
// locale-specific multi-rune mappings.
func lower(s string) string {
	buf := make([]rune, 0, len(s))
	for _, r := range s {
		buf = append(buf, unicode.ToLower(r))
	}
	return string(buf)
}

// TermCounts maps a term to its number of occurrences in one document.
type TermCounts map[string]int

// CountTerms tokenizes doc and counts each term.
func CountTerms(doc string) TermCounts {
	counts := make(TermCounts)
	for _, term := range Tokenize(doc) {
		counts[term]++
	}
	return counts
}
