package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// ErrInvalidStatistics is returned when encoded statistics do not line up
// with their vocabulary.
var ErrInvalidStatistics = errors.New("invalid statistics")

// Statistics holds the artifacts of one computation. Every matrix has one
// row per document and one column per vocabulary term.
type Statistics struct {
	Vocabulary    *Vocabulary
	TF            [][]int
	IDF           []float64
	TFIDF         [][]float64
	DocOccurrence []int
}

// Shape returns the number of documents and terms.
func (s *Statistics) Shape() (docs, terms int) {
	return len(s.TF), s.Vocabulary.Len()
}

type statisticsJSON struct {
	Vocabulary    []string    `json:"vocabulary"`
	TF            [][]int     `json:"tf"`
	IDF           []float64   `json:"idf"`
	TFIDF         [][]float64 `json:"tfidf"`
	DocOccurrence []int       `json:"doc_occurrence"`
}

// MarshalJSON writes the vocabulary as an ordered term list.
func (s *Statistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(statisticsJSON{
		Vocabulary:    s.Vocabulary.Terms(),
		TF:            s.TF,
		IDF:           s.IDF,
		TFIDF:         s.TFIDF,
		DocOccurrence: s.DocOccurrence,
	})
}

// UnmarshalJSON rebuilds the vocabulary index from the term list. The list
// must already be sorted and distinct, and every vector must match its width.
func (s *Statistics) UnmarshalJSON(data []byte) error {
	var raw statisticsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	vocab := NewVocabulary(raw.Vocabulary)
	if !slices.Equal(vocab.Terms(), raw.Vocabulary) {
		return fmt.Errorf("%w: vocabulary is not a sorted distinct term list", ErrInvalidStatistics)
	}
	width := vocab.Len()
	if len(raw.IDF) != width || len(raw.DocOccurrence) != width {
		return fmt.Errorf("%w: idf or doc_occurrence width differs from vocabulary size %d", ErrInvalidStatistics, width)
	}
	if len(raw.TFIDF) != len(raw.TF) {
		return fmt.Errorf("%w: %d tf rows but %d tfidf rows", ErrInvalidStatistics, len(raw.TF), len(raw.TFIDF))
	}
	for d := range raw.TF {
		if len(raw.TF[d]) != width || len(raw.TFIDF[d]) != width {
			return fmt.Errorf("%w: row %d width differs from vocabulary size %d", ErrInvalidStatistics, d, width)
		}
	}

	s.Vocabulary = vocab
	s.TF = raw.TF
	s.IDF = raw.IDF
	s.TFIDF = raw.TFIDF
	s.DocOccurrence = raw.DocOccurrence
	return nil
}

// DocumentFrequency counts, per column, the rows with a nonzero entry.
func DocumentFrequency(tf [][]int, terms int) []int {
	df := make([]int, terms)
	for _, row := range tf {
		for t, n := range row {
			if n > 0 {
				df[t]++
			}
		}
	}
	return df
}

// SmoothedIDF computes ln((1+n)/(1+df)) + 1 for each term. The result is
// strictly positive, including for terms present in every document.
func SmoothedIDF(df []int, n int) []float64 {
	idf := make([]float64, len(df))
	for t, d := range df {
		idf[t] = math.Log(float64(1+n)/float64(1+d)) + 1
	}
	return idf
}

// WeightMatrix multiplies each TF cell by its column's IDF.
func WeightMatrix(tf [][]int, idf []float64) [][]float64 {
	out := make([][]float64, len(tf))
	for d, row := range tf {
		weighted := make([]float64, len(row))
		for t, n := range row {
			weighted[t] = float64(n) * idf[t]
		}
		out[d] = weighted
	}
	return out
}

// TermScore is one ranked entry of a document row.
type TermScore struct {
	Term  string  `json:"term"`
	Count int     `json:"count"`
	Score float64 `json:"score"`
}

// TopTerms returns up to k terms of document doc with a nonzero count,
// ordered by TF-IDF descending and then by vocabulary order.
func (s *Statistics) TopTerms(doc, k int) []TermScore {
	if doc < 0 || doc >= len(s.TFIDF) || k <= 0 {
		return nil
	}

	row := s.TFIDF[doc]
	cols := make([]int, 0, len(row))
	for t := range row {
		if s.TF[doc][t] > 0 {
			cols = append(cols, t)
		}
	}
	sort.SliceStable(cols, func(i, j int) bool {
		return row[cols[i]] > row[cols[j]]
	})
	if len(cols) > k {
		cols = cols[:k]
	}

	out := make([]TermScore, len(cols))
	for i, t := range cols {
		out[i] = TermScore{Term: s.Vocabulary.Term(t), Count: s.TF[doc][t], Score: row[t]}
	}
	return out
}
