//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package bm25 provides lexical relevance scoring for short Portuguese
// texts. It backs the lexical re-ranker and the example-based intent
// classifier.
package bm25

import "math"

// Okapi BM25 parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// BM25 holds the ranking parameters and the statistics of the corpus being
// scored.
type BM25 struct {
	K1       float64
	B        float64
	AvgDL    float64
	DocCount int
}

// New creates a scorer with the default parameters.
func New() *BM25 {
	return NewWithParams(DefaultK1, DefaultB)
}

// NewWithParams creates a scorer with custom parameters.
func NewWithParams(k1, b float64) *BM25 {
	return &BM25{K1: k1, B: b}
}

// SetCorpusStats records the number of documents and their mean length.
func (bm *BM25) SetCorpusStats(docCount int, avgDocLength float64) {
	bm.DocCount = docCount
	bm.AvgDL = avgDocLength
}

// IDF is the non-negative Lucene variant:
//
//	log(1 + (N - df + 0.5) / (df + 0.5))
func (bm *BM25) IDF(docFreq int) float64 {
	if bm.DocCount == 0 || docFreq == 0 {
		return 0
	}
	n, df := float64(bm.DocCount), float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Score returns the contribution of one term occurring tf times in a
// document of docLen terms.
func (bm *BM25) Score(tf, docFreq, docLen int) float64 {
	if tf == 0 || docFreq == 0 || bm.DocCount == 0 {
		return 0
	}

	norm := 1 - bm.B
	if bm.AvgDL > 0 {
		norm += bm.B * float64(docLen) / bm.AvgDL
	}
	f := float64(tf)
	return bm.IDF(docFreq) * f * (bm.K1 + 1) / (f + bm.K1*norm)
}

// ScoreDocument sums the term scores of every query term.
func (bm *BM25) ScoreDocument(
	queryTerms map[string]int,
	docTermFreqs map[string]int,
	docFreqs map[string]int,
	docLen int,
) float64 {
	var score float64
	for term := range queryTerms {
		score += bm.Score(docTermFreqs[term], docFreqs[term], docLen)
	}
	return score
}

// Saturate maps a non-negative score onto [0, 1). A score equal to half
// maps to 0.5.
func Saturate(score, half float64) float64 {
	if score <= 0 || half <= 0 {
		return 0
	}
	return score / (score + half)
}
