//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package rerank

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/pgEdge/pgedge-rag-chat/internal/bm25"
	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
)

// saturationHalf is the raw BM25 score that maps to an estimate of 0.5.
const saturationHalf = 4.0

// LexicalScorer scores passages without a model: the passage's sentences
// are ranked with BM25 against the question, the best sentence becomes the
// answer span, and the estimate is its saturated score. The weighted
// score scales the raw score by the share of question terms the passage
// contains.
type LexicalScorer struct {
	tokenizer *bm25.Tokenizer
}

// NewLexicalScorer creates a lexical scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{tokenizer: bm25.NewTokenizer()}
}

// Score implements Scorer.
func (s *LexicalScorer) Score(ctx context.Context, question, passage string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	sentences := splitSentences(passage)
	idx := bm25.NewIndex()
	for i, sentence := range sentences {
		idx.AddDocument(strconv.Itoa(i), sentence)
	}

	var best bm25.SearchResult
	if hits := idx.Search(question, 1); len(hits) > 0 {
		best = hits[0]
	}

	raw := best.Score
	return Result{
		Relevance: retrieval.Relevance{
			Estimated: retrieval.Score(bm25.Saturate(raw, saturationHalf)),
			LogitSum:  retrieval.Score(raw),
		},
		Weighted: retrieval.Score(raw * s.coverage(question, passage)),
		Answer:   best.Content,
	}, nil
}

// coverage is the fraction of distinct question terms found in passage.
func (s *LexicalScorer) coverage(question, passage string) float64 {
	terms := s.tokenizer.TokenFrequencies(question)
	if len(terms) == 0 {
		return 0
	}
	present := s.tokenizer.TokenFrequencies(passage)

	found := 0
	for term := range terms {
		if present[term] > 0 {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// splitSentences breaks text after '.', '!', '?', ';' and newlines.
func splitSentences(text string) []string {
	var sentences []string
	var sb strings.Builder

	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			sentences = append(sentences, s)
		}
		sb.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		sb.WriteRune(r)
		if strings.ContainsRune(".!?;", r) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()

	return sentences
}
