//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-rag-chat/internal/envelope"
	"github.com/pgEdge/pgedge-rag-chat/internal/store"
	"github.com/pgEdge/pgedge-rag-chat/internal/store/sqlite"
)

func newEvaluationStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	id, err := s.InsertInteraction(context.Background(), &store.Interaction{
		Question:  "Quantos dias de férias?",
		Answer:    "Trinta dias.",
		SessionID: "sessao-1",
		Intent:    "consulta",
	})
	require.NoError(t, err)
	return s, id
}

func TestEvaluate_InsertThenUpdate(t *testing.T) {
	s, id := newEvaluationStore(t)
	e := NewEvaluator(s, nil)
	ctx := context.Background()

	first := e.Evaluate(ctx, EvaluationRequest{
		InteractionID: id,
		Rating:        json.RawMessage("5"),
		Comment:       "ótimo",
	})
	assert.True(t, first.Success)
	assert.Equal(t, msgEvaluationStored, first.Message)

	second := e.Evaluate(ctx, EvaluationRequest{
		InteractionID: id,
		Rating:        json.RawMessage("1"),
		Comment:       "ruim",
	})
	assert.True(t, second.Success)
	assert.Equal(t, id, second.InteractionID)
	assert.Equal(t, "ruim", second.Comment)

	evals, err := s.FindEvaluations(ctx, id)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.JSONEq(t, "1", string(evals[0].Rating))
	assert.Equal(t, "ruim", evals[0].Comment)
}

// staleReadStore hides existing evaluations, as a concurrent request that
// read before the other one inserted would see them.
type staleReadStore struct {
	*sqlite.Store
}

func (staleReadStore) FindEvaluations(context.Context, string) ([]store.Evaluation, error) {
	return nil, nil
}

func TestEvaluate_ConcurrentFirstEvaluations(t *testing.T) {
	s, id := newEvaluationStore(t)
	ctx := context.Background()

	_, err := s.InsertEvaluation(ctx, &store.Evaluation{
		InteractionID: id,
		Rating:        json.RawMessage("5"),
		Comment:       "ótimo",
	})
	require.NoError(t, err)

	res := NewEvaluator(staleReadStore{s}, nil).Evaluate(ctx, EvaluationRequest{
		InteractionID: id,
		Rating:        json.RawMessage(`"negativo"`),
		Comment:       "ruim",
	})
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, msgEvaluationStored, res.Message)

	evals, err := s.FindEvaluations(ctx, id)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.JSONEq(t, `"negativo"`, string(evals[0].Rating))
	assert.Equal(t, "ruim", evals[0].Comment)
}

func TestEvaluate_RatingKinds(t *testing.T) {
	s, id := newEvaluationStore(t)
	e := NewEvaluator(s, nil)

	for _, rating := range []string{`"positivo"`, `true`, `null`, ``, ` 4.5 `} {
		res := e.Evaluate(context.Background(), EvaluationRequest{
			InteractionID: id,
			Rating:        json.RawMessage(rating),
		})
		assert.True(t, res.Success, "rating %q: %s", rating, res.Message)
	}

	evals, err := s.FindEvaluations(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, "4.5", string(evals[0].Rating))
}

func TestEvaluate_InvalidRating(t *testing.T) {
	s, id := newEvaluationStore(t)
	e := NewEvaluator(s, nil)

	for _, rating := range []string{`"excelente"`, `[1,2]`, `{"nota":5}`, `nota`} {
		res := e.Evaluate(context.Background(), EvaluationRequest{
			InteractionID: id,
			Rating:        json.RawMessage(rating),
		})
		assert.False(t, res.Success, "rating %q", rating)
		assert.Nil(t, res.Rating)
		assert.True(t, strings.HasPrefix(res.Message, msgEvaluationFailed), res.Message)
	}

	evals, err := s.FindEvaluations(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, evals)
}

func TestEvaluate_UnknownInteraction(t *testing.T) {
	s, _ := newEvaluationStore(t)
	e := NewEvaluator(s, nil)

	res := e.Evaluate(context.Background(), EvaluationRequest{
		InteractionID: "00000000-0000-0000-0000-000000000000",
		Rating:        json.RawMessage("3"),
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, store.ErrInteractionNotFound.Error())
}

func TestEvaluate_DuplicateRows(t *testing.T) {
	s := &MockStore{
		FindEvaluationsFunc: func(context.Context, string) ([]store.Evaluation, error) {
			return []store.Evaluation{{ID: "1"}, {ID: "2"}}, nil
		},
		UpdateEvaluationFunc: func(context.Context, *store.Evaluation) (int64, error) {
			t.Error("no write expected with duplicate rows")
			return 0, nil
		},
	}

	res := NewEvaluator(s, nil).Evaluate(context.Background(), EvaluationRequest{
		InteractionID: "interacao-1",
		Rating:        json.RawMessage("2"),
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, store.ErrDuplicateEvaluation.Error())
}

func TestEvaluate_RowsAffected(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		success bool
		message string
	}{
		{"not stored", 0, false, msgEvaluationNotStored},
		{"stored", 1, true, msgEvaluationStored},
		{"several", 2, false, msgEvaluationFailed + store.ErrDuplicateEvaluation.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &MockStore{
				FindEvaluationsFunc: func(context.Context, string) ([]store.Evaluation, error) {
					return []store.Evaluation{{ID: "1"}}, nil
				},
				UpdateEvaluationFunc: func(context.Context, *store.Evaluation) (int64, error) {
					return tt.rows, nil
				},
			}

			res := NewEvaluator(s, nil).Evaluate(context.Background(), EvaluationRequest{
				InteractionID: "interacao-1",
				Rating:        json.RawMessage("2"),
			})
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestEvaluate_StoreFailure(t *testing.T) {
	s := &MockStore{
		FindEvaluationsFunc: func(context.Context, string) ([]store.Evaluation, error) {
			return nil, errors.New("database is locked")
		},
	}

	res := NewEvaluator(s, nil).Evaluate(context.Background(), EvaluationRequest{
		InteractionID: "interacao-1",
		Rating:        json.RawMessage("2"),
	})
	assert.False(t, res.Success)
	assert.Equal(t, msgEvaluationFailed+"database is locked", res.Message)
}

func TestEvaluationResult_Envelope(t *testing.T) {
	msg := EvaluationResult{
		InteractionID: "abc",
		Rating:        json.RawMessage("5"),
		Success:       true,
		Message:       msgEvaluationStored,
	}.Envelope()

	assert.Equal(t, envelope.KindData, msg.Kind)
	assert.Equal(t, envelope.TagEvaluationStored, msg.Tag())
	assert.Equal(t, "Resultado da requisição de avaliação", msg.Description)

	line, err := msg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(line), `"sucesso_avaliacao":true`)
	assert.Contains(t, string(line), `"avaliacao":5`)
}
