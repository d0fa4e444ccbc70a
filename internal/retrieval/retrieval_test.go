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
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/pgEdge/pgedge-rag-chat/internal/database"
)

func TestDocument_JSON(t *testing.T) {
	doc := Document{
		ID:         "42",
		Similarity: 0.75,
		Metadata:   Metadata{Title: "Resolução 7"},
		Content:    "Texto.",
		Relevance:  Relevance{Estimated: 0.5, LogitSum: 11.25},
		Weighted:   3,
		Answer:     "30 dias",
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"id":"42","score_distancia":0.75,"metadados":{"titulo":"Resolução 7"},` +
		`"conteudo":"Texto.","score_bert":[0.5,11.25],"score_ponderado":3,"resposta_bert":"30 dias"}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}
}

func TestDocument_JSON_WorstScore(t *testing.T) {
	doc := Document{ID: "1", Relevance: WorstRelevance, Weighted: WorstScore}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal of -Inf scores failed: %v", err)
	}

	var back Document
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !math.IsInf(float64(back.Relevance.Estimated), -1) || !math.IsInf(float64(back.Weighted), -1) {
		t.Errorf("null scores should read back as -Inf, got %+v", back)
	}
}

func TestPromptLine(t *testing.T) {
	d := Document{Metadata: Metadata{Title: "Portaria 12"}, Content: "Art. 1º ..."}
	if got := d.PromptLine(); got != "Portaria 12 - Art. 1º ..." {
		t.Errorf("PromptLine() = %q", got)
	}
}

type mockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.EmbedFunc(ctx, text)
}

func (m *mockEmbedder) ModelName() string { return "mock" }

type mockSearcher struct {
	SearchFunc func(ctx context.Context, embedding []float32, topN int) ([]database.SearchResult, error)
}

func (m *mockSearcher) Search(ctx context.Context, embedding []float32, topN int) ([]database.SearchResult, error) {
	return m.SearchFunc(ctx, embedding, topN)
}

func TestVectorRetriever(t *testing.T) {
	embedder := &mockEmbedder{
		EmbedFunc: func(_ context.Context, text string) ([]float32, error) {
			if text != "prazo de férias" {
				t.Errorf("unexpected text %q", text)
			}
			return []float32{1, 0}, nil
		},
	}
	searcher := &mockSearcher{
		SearchFunc: func(_ context.Context, emb []float32, topN int) ([]database.SearchResult, error) {
			if topN != 5 || len(emb) != 2 {
				t.Errorf("unexpected search args %v %d", emb, topN)
			}
			return []database.SearchResult{
				{ID: "a", Similarity: 0.9, Title: "Resolução 1", Subtitle: "Art. 3", Content: "Trinta dias."},
				{ID: "b", Similarity: -0.1, Title: "Portaria 2", Content: "Outro."},
			}, nil
		},
	}

	docs, err := NewVectorRetriever(embedder, searcher).Retrieve(context.Background(), "prazo de férias", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Metadata.Subtitle != "Art. 3" || docs[1].Similarity != -0.1 {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestVectorRetriever_EmbedError(t *testing.T) {
	embedErr := errors.New("ollama offline")
	embedder := &mockEmbedder{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return nil, embedErr },
	}
	searcher := &mockSearcher{
		SearchFunc: func(context.Context, []float32, int) ([]database.SearchResult, error) {
			t.Error("search should not run without an embedding")
			return nil, nil
		},
	}

	_, err := NewVectorRetriever(embedder, searcher).Retrieve(context.Background(), "x", 5)
	if !errors.Is(err, embedErr) {
		t.Errorf("expected embed error, got %v", err)
	}
}
