//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package rerank re-scores retrieved fragments against the question with
// a more precise model than the embedding similarity.
package rerank

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
)

// PlaceholderAnswer replaces the answer span of a document that could
// not be scored.
const PlaceholderAnswer = "Resposta não estimada"

// Result is the outcome of scoring one (question, passage) pair.
type Result struct {
	Relevance retrieval.Relevance
	Weighted  retrieval.Score
	Answer    string
}

// Scorer rates how well a passage answers a question. Implementations are
// shared by concurrent requests.
type Scorer interface {
	Score(ctx context.Context, question, passage string) (Result, error)
}

// Apply scores every document in place. A document whose scoring fails
// gets the worst score and the placeholder answer; its error is returned
// at the same index, nil elsewhere. With workers > 1 documents are scored
// concurrently, at most workers at a time.
func Apply(
	ctx context.Context,
	scorer Scorer,
	question string,
	docs []retrieval.Document,
	workers int,
) []error {
	errs := make([]error, len(docs))

	score := func(i int) {
		res, err := scorer.Score(ctx, question, docs[i].Content)
		if err == nil && !res.Relevance.Estimated.IsFinite() {
			res.Relevance.Estimated = retrieval.WorstScore
		}
		if err != nil {
			errs[i] = err
			res = Result{
				Relevance: retrieval.WorstRelevance,
				Weighted:  retrieval.WorstScore,
				Answer:    PlaceholderAnswer,
			}
		}
		docs[i].Relevance = res.Relevance
		docs[i].Weighted = res.Weighted
		docs[i].Answer = res.Answer
	}

	if workers <= 1 {
		for i := range docs {
			score(i)
		}
		return errs
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range docs {
		g.Go(func() error {
			score(i)
			return nil
		})
	}
	g.Wait()

	return errs
}

// Sort orders documents by estimated relevance, best first. Equal scores
// keep their retrieval order.
func Sort(docs []retrieval.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Relevance.Estimated > docs[j].Relevance.Estimated
	})
}
