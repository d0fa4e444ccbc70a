//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package bm25

import (
	"sort"
	"sync"
)

// Document is an indexed text with an optional label.
type Document struct {
	ID        string
	Label     string
	Content   string
	Length    int
	TermFreqs map[string]int
}

// SearchResult is one scored document.
type SearchResult struct {
	ID      string
	Label   string
	Content string
	Score   float64
}

// Index is an in-memory BM25 index. Documents keep their insertion order,
// which breaks ties between equal scores.
type Index struct {
	mu        sync.RWMutex
	tokenizer *Tokenizer
	scorer    *BM25
	docs      []*Document
	byID      map[string]int
	docFreqs  map[string]int
	totalLen  int
}

// NewIndex creates an empty index with the default tokenizer and
// parameters.
func NewIndex() *Index {
	return &Index{
		tokenizer: NewTokenizer(),
		scorer:    New(),
		byID:      make(map[string]int),
		docFreqs:  make(map[string]int),
	}
}

// AddDocument indexes content under id. Re-adding an id replaces it.
func (idx *Index) AddDocument(id, content string) {
	idx.AddLabeled(id, "", content)
}

// AddLabeled indexes content under id, tagged with label.
func (idx *Index) AddLabeled(id, label, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	termFreqs := idx.tokenizer.TokenFrequencies(content)
	docLen := 0
	for _, freq := range termFreqs {
		docLen += freq
	}

	doc := &Document{
		ID:        id,
		Label:     label,
		Content:   content,
		Length:    docLen,
		TermFreqs: termFreqs,
	}

	if pos, ok := idx.byID[id]; ok {
		idx.forget(idx.docs[pos])
		idx.docs[pos] = doc
	} else {
		idx.byID[id] = len(idx.docs)
		idx.docs = append(idx.docs, doc)
	}

	for term := range termFreqs {
		idx.docFreqs[term]++
	}
	idx.totalLen += docLen
	idx.updateScorerStats()
}

func (idx *Index) forget(doc *Document) {
	for term := range doc.TermFreqs {
		idx.docFreqs[term]--
		if idx.docFreqs[term] <= 0 {
			delete(idx.docFreqs, term)
		}
	}
	idx.totalLen -= doc.Length
}

func (idx *Index) updateScorerStats() {
	avgDL := 0.0
	if len(idx.docs) > 0 {
		avgDL = float64(idx.totalLen) / float64(len(idx.docs))
	}
	idx.scorer.SetCorpusStats(len(idx.docs), avgDL)
}

// Search returns up to topN documents with a positive score, best first.
// A topN of zero or less returns every match.
func (idx *Index) Search(query string, topN int) []SearchResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.docs) == 0 {
		return nil
	}

	queryTermFreqs := idx.tokenizer.TokenFrequencies(query)
	if len(queryTermFreqs) == 0 {
		return nil
	}

	var results []SearchResult
	for _, doc := range idx.docs {
		score := idx.scorer.ScoreDocument(
			queryTermFreqs,
			doc.TermFreqs,
			idx.docFreqs,
			doc.Length,
		)
		if score > 0 {
			results = append(results, SearchResult{
				ID:      doc.ID,
				Label:   doc.Label,
				Content: doc.Content,
				Score:   score,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}
