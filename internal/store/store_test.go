//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
)

func TestTurnJSON(t *testing.T) {
	var turns []Turn
	require.NoError(t, json.Unmarshal([]byte(`[["Oi","Olá"],["Férias?","30 dias"]]`), &turns))
	require.Len(t, turns, 2)
	assert.Equal(t, Turn{Question: "Férias?", Answer: "30 dias"}, turns[1])

	data, err := json.Marshal(turns[0])
	require.NoError(t, err)
	assert.JSONEq(t, `["Oi","Olá"]`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`[["só pergunta"]]`), &turns))
	assert.Error(t, json.Unmarshal([]byte(`[{"q":"x"}]`), &turns))
}

func TestSecondsRoundTrip(t *testing.T) {
	assert.Nil(t, Seconds(nil))
	assert.Nil(t, Duration(nil))

	d := 1500 * time.Millisecond
	s := Seconds(&d)
	require.NotNil(t, s)
	assert.InDelta(t, 1.5, *s, 1e-9)
	assert.Equal(t, d, *Duration(s))
}

func TestEncodeHistory_Nil(t *testing.T) {
	text, err := EncodeHistory(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
}

func TestDocumentRows(t *testing.T) {
	rows := DocumentRows([]retrieval.Document{
		{ID: "x", Relevance: retrieval.Relevance{Estimated: 0.5, LogitSum: 2}, Weighted: 0.25},
		{ID: "y", Relevance: retrieval.WorstRelevance, Weighted: retrieval.WorstScore},
	})
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].Position)
	require.NotNil(t, rows[0].Estimated)
	assert.Equal(t, 0.5, *rows[0].Estimated)

	assert.Equal(t, 1, rows[1].Position)
	assert.Nil(t, rows[1].Estimated)
	assert.Nil(t, rows[1].LogitSum)
	assert.Nil(t, rows[1].Weighted)
}
