//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
	"github.com/pgEdge/pgedge-rag-chat/internal/store"
)

const envTestDatabaseURL = "RAGCHAT_TEST_DATABASE_URL"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv(envTestDatabaseURL)
	if url == "" {
		t.Skipf("%s not set", envTestDatabaseURL)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)

	s, err := New(ctx, pool)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertInteraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	elapsed := 1500 * time.Millisecond
	id, err := s.InsertInteraction(ctx, &store.Interaction{
		Question: "Qual o prazo de recurso?",
		Documents: []retrieval.Document{
			{ID: "a", Similarity: 0.7, Relevance: retrieval.Relevance{Estimated: 0.6, LogitSum: 3}},
			{ID: "b", Similarity: 0.6, Relevance: retrieval.WorstRelevance, Weighted: retrieval.WorstScore},
		},
		RetrievalDuration: &elapsed,
		Answer:            "Dez dias.",
		Completion:        json.RawMessage(`{"model":"m"}`),
		Intent:            "consulta",
	})
	require.NoError(t, err)

	var docs int
	require.NoError(t, s.db.(*pgxpool.Pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM Documento_em_Interacao WHERE id_interacao = $1", id).Scan(&docs))
	assert.Equal(t, 2, docs)
}

func TestEvaluationUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertInteraction(ctx, &store.Interaction{Question: "q", Answer: "a"})
	require.NoError(t, err)

	n, err := s.InsertEvaluation(ctx, &store.Evaluation{InteractionID: id, Rating: json.RawMessage(`5`), Comment: "ótimo"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.UpdateEvaluation(ctx, &store.Evaluation{InteractionID: id, Rating: json.RawMessage(`1`), Comment: "ruim"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	found, err := s.FindEvaluations(ctx, id)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.JSONEq(t, `1`, string(found[0].Rating))
	assert.Equal(t, "ruim", found[0].Comment)

	_, err = s.InsertEvaluation(ctx, &store.Evaluation{InteractionID: id, Rating: json.RawMessage(`2`)})
	assert.ErrorIs(t, err, store.ErrEvaluationExists)
}

func TestInsertEvaluation_UnknownInteraction(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertEvaluation(context.Background(), &store.Evaluation{
		InteractionID: "00000000-0000-0000-0000-000000000000",
		Rating:        json.RawMessage(`true`),
	})
	assert.ErrorIs(t, err, store.ErrInteractionNotFound)
}

func TestFindEvaluations_MalformedID(t *testing.T) {
	s := &Store{}

	found, err := s.FindEvaluations(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Empty(t, found)

	n, err := s.UpdateEvaluation(context.Background(), &store.Evaluation{InteractionID: "id-1"})
	require.NoError(t, err)
	assert.Zero(t, n)
}
