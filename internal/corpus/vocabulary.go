package corpus

import "sort"

// Vocabulary is a frozen, lexicographically sorted set of terms. A term's
// position is its column in every matrix computed against it.
type Vocabulary struct {
	terms []string
	index map[string]int
}

// NewVocabulary deduplicates and sorts terms.
func NewVocabulary(terms []string) *Vocabulary {
	seen := make(map[string]struct{}, len(terms))
	uniq := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)

	index := make(map[string]int, len(uniq))
	for i, t := range uniq {
		index[t] = i
	}
	return &Vocabulary{terms: uniq, index: index}
}

// BuildVocabulary is the first pass: the union of every document's terms.
// It must see all documents before any column index is used.
func BuildVocabulary(counts []TermCounts) *Vocabulary {
	size := 0
	for _, c := range counts {
		size += len(c)
	}
	terms := make([]string, 0, size)
	for _, c := range counts {
		for term, n := range c {
			if n > 0 {
				terms = append(terms, term)
			}
		}
	}
	return NewVocabulary(terms)
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Terms returns a copy of the ordered terms.
func (v *Vocabulary) Terms() []string {
	if v == nil {
		return []string{}
	}
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Term returns the term at column i.
func (v *Vocabulary) Term(i int) string {
	return v.terms[i]
}

// Index returns the column of term.
func (v *Vocabulary) Index(term string) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.index[term]
	return i, ok
}

// CountRow is the second pass for one document: counts looked up against
// the frozen vocabulary, zero where absent. Terms outside the vocabulary are
// ignored.
func CountRow(counts TermCounts, v *Vocabulary) []int {
	row := make([]int, v.Len())
	for term, n := range counts {
		if i, ok := v.Index(term); ok {
			row[i] = n
		}
	}
	return row
}

// CountMatrix applies CountRow to every document.
func CountMatrix(counts []TermCounts, v *Vocabulary) [][]int {
	tf := make([][]int, len(counts))
	for d, c := range counts {
		tf[d] = CountRow(c, v)
	}
	return tf
}
