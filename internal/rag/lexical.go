package rag

import (
	"math"
	"strings"
	"unicode"
)

// Okapi BM25 parameters.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// Tokenize splits text on whitespace only. Case and punctuation are kept, so
// "Paris" and "PARIS," are different terms.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// NormalizeTokens splits like Tokenize, then lowercases each token and trims
// surrounding punctuation. Empty tokens are dropped.
func NormalizeTokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.TrimFunc(strings.ToLower(f), unicode.IsPunct)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// BM25 is an Okapi BM25 index over one tokenized corpus. It is built per
// query and never mutated afterwards.
type BM25 struct {
	docFreqs []map[string]int
	docLens  []int
	avgdl    float64
	idf      map[string]float64
}

// NewBM25 indexes corpus. Terms whose IDF would be negative (present in
// more than half the documents) get epsilon times the average IDF instead.
func NewBM25(corpus [][]string) *BM25 {
	idx := &BM25{
		docFreqs: make([]map[string]int, len(corpus)),
		docLens:  make([]int, len(corpus)),
		idf:      make(map[string]float64),
	}
	if len(corpus) == 0 {
		return idx
	}

	nd := make(map[string]int)
	total := 0
	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, tok := range doc {
			freqs[tok]++
		}
		for tok := range freqs {
			nd[tok]++
		}
		idx.docFreqs[i] = freqs
		idx.docLens[i] = len(doc)
		total += len(doc)
	}
	idx.avgdl = float64(total) / float64(len(corpus))

	n := float64(len(corpus))
	var idfSum float64
	var negative []string
	for tok, freq := range nd {
		v := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		idx.idf[tok] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	eps := bm25Epsilon * idfSum / float64(len(idx.idf))
	for _, tok := range negative {
		idx.idf[tok] = eps
	}
	return idx
}

// Scores returns one BM25 score per corpus document for query.
func (b *BM25) Scores(query []string) []float64 {
	scores := make([]float64, len(b.docFreqs))
	if b.avgdl == 0 {
		return scores
	}
	for _, q := range query {
		idf, ok := b.idf[q]
		if !ok {
			continue
		}
		for i, freqs := range b.docFreqs {
			tf := float64(freqs[q])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(b.docLens[i])/b.avgdl
			scores[i] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}
	return scores
}
