package services

import (
	"maps"
	"math"
	"slices"
)

// LexicalModel holds the inverse document frequencies of one generation.
// It is immutable once built.
type LexicalModel struct {
	df   map[string]int
	docs int
}

// FitLexicalModel counts, per term, the documents containing it.
func FitLexicalModel(docs [][]string) *LexicalModel {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	return &LexicalModel{df: df, docs: len(docs)}
}

// NewLexicalModel restores a model from persisted document frequencies.
func NewLexicalModel(df map[string]int, docs int) *LexicalModel {
	if df == nil {
		df = map[string]int{}
	}
	return &LexicalModel{df: df, docs: docs}
}

// IDF returns the smoothed inverse document frequency of term.
func (m *LexicalModel) IDF(term string) float64 {
	return math.Log(float64(1+m.docs)/float64(1+m.df[term])) + 1
}

// Weights returns L2-normalised tf-idf weights of tokens.
// A nil model weighs terms by frequency only.
func (m *LexicalModel) Weights(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return map[string]float64{}
	}
	tf := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	var norm float64
	for term, freq := range tf {
		w := freq
		if m != nil {
			w *= m.IDF(term)
		}
		tf[term] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for term := range tf {
		tf[term] /= norm
	}
	return tf
}

// DocumentFrequency returns a copy of the per-term document counts.
func (m *LexicalModel) DocumentFrequency() map[string]int {
	return maps.Clone(m.df)
}

// Documents returns the number of documents the model was fitted on.
func (m *LexicalModel) Documents() int {
	return m.docs
}

// Vocabulary returns the known terms in sorted order.
func (m *LexicalModel) Vocabulary() []string {
	return slices.Sorted(maps.Keys(m.df))
}

// LexicalOverlap returns the cosine similarity of two normalised weight maps.
func LexicalOverlap(a, b map[string]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a {
		dot += w * b[term]
	}
	return dot
}

// MatchedTerms returns the query terms present in doc, sorted.
func MatchedTerms(query, doc map[string]float64) []string {
	var out []string
	for term := range query {
		if _, ok := doc[term]; ok {
			out = append(out, term)
		}
	}
	slices.Sort(out)
	return out
}
