//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package retrieval

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-rag-chat/internal/database"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// Retriever returns the topN fragments most similar to a question, most
// similar first.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topN int) ([]Document, error)
}

// VectorSearcher runs a similarity query for an embedding.
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, topN int) ([]database.SearchResult, error)
}

// VectorRetriever embeds the question and queries a pgvector table.
type VectorRetriever struct {
	embedder llm.EmbeddingProvider
	searcher VectorSearcher
}

// NewVectorRetriever creates a retriever.
func NewVectorRetriever(embedder llm.EmbeddingProvider, searcher VectorSearcher) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, searcher: searcher}
}

// Retrieve implements Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, question string, topN int) ([]Document, error) {
	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	rows, err := r.searcher.Search(ctx, embedding, topN)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(rows))
	for i, row := range rows {
		docs[i] = Document{
			ID:         row.ID,
			Similarity: row.Similarity,
			Metadata: Metadata{
				Title:    row.Title,
				Subtitle: row.Subtitle,
				Author:   row.Author,
				Source:   row.Source,
			},
			Content: row.Content,
		}
	}
	return docs, nil
}
