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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pgEdge/pgedge-rag-chat/internal/envelope"
	"github.com/pgEdge/pgedge-rag-chat/internal/store"
)

// Outcome messages of an evaluation.
const (
	msgEvaluationStored    = "Avaliação registrada"
	msgEvaluationNotStored = "Query executada, mas dados não registrados"
	msgEvaluationFailed    = "Ocorreu um erro. "

	descEvaluationResult = "Resultado da requisição de avaliação"
)

// ErrInvalidRating is returned for a rating that is not a number, a
// boolean, null or one of the known labels.
var ErrInvalidRating = errors.New("avaliação inválida")

var ratingLabels = map[string]bool{
	"positivo": true,
	"negativo": true,
	"alerta":   true,
}

// Evaluator records user ratings, keeping at most one per interaction.
type Evaluator struct {
	store  store.Store
	logger *slog.Logger
}

// NewEvaluator creates an evaluator on s.
func NewEvaluator(s store.Store, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: s, logger: logger}
}

// Evaluate stores req and reports the outcome. It never fails; errors are
// described in the result. The result echoes the rating as stored, or
// null when it was rejected.
func (e *Evaluator) Evaluate(ctx context.Context, req EvaluationRequest) EvaluationResult {
	result := EvaluationResult{
		InteractionID: req.InteractionID,
		Comment:       req.Comment,
	}

	rating, err := normalizeRating(req.Rating)
	var rows int64
	if err == nil {
		result.Rating = rating
		rows, err = e.upsert(ctx, req.InteractionID, rating, req.Comment)
	}
	switch {
	case err != nil:
		level := slog.LevelWarn
		if errors.Is(err, store.ErrDuplicateEvaluation) {
			level = slog.LevelError
		}
		e.logger.Log(ctx, level, "evaluation not recorded",
			"interaction", req.InteractionID,
			"error", err,
		)
		result.Message = msgEvaluationFailed + err.Error()
	case rows == 1:
		result.Success = true
		result.Message = msgEvaluationStored
	case rows == 0:
		result.Message = msgEvaluationNotStored
	default:
		e.logger.Error("evaluation touched several rows",
			"interaction", req.InteractionID,
			"rows", rows,
		)
		result.Message = msgEvaluationFailed + store.ErrDuplicateEvaluation.Error()
	}

	return result
}

// upsert inserts the first evaluation of an interaction and updates it
// afterwards.
func (e *Evaluator) upsert(ctx context.Context, interactionID string, rating json.RawMessage, comment string) (int64, error) {
	existing, err := e.store.FindEvaluations(ctx, interactionID)
	if err != nil {
		return 0, err
	}

	ev := &store.Evaluation{
		InteractionID: interactionID,
		Rating:        rating,
		Comment:       comment,
	}
	switch len(existing) {
	case 0:
		rows, err := e.store.InsertEvaluation(ctx, ev)
		if errors.Is(err, store.ErrEvaluationExists) {
			return e.store.UpdateEvaluation(ctx, ev)
		}
		return rows, err
	case 1:
		return e.store.UpdateEvaluation(ctx, ev)
	default:
		return 0, fmt.Errorf("%w: %d rows for %s",
			store.ErrDuplicateEvaluation, len(existing), interactionID)
	}
}

// normalizeRating validates a rating and returns its compact JSON text.
// An absent rating is stored as null.
func normalizeRating(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("null"), nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRating, err)
	}
	switch r := v.(type) {
	case nil, bool, float64:
	case string:
		if !ratingLabels[r] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRating, r)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRating, trimmed)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRating, err)
	}
	return buf.Bytes(), nil
}

// Envelope wraps a result for the client.
func (r EvaluationResult) Envelope() envelope.Message {
	return envelope.Data(descEvaluationResult, envelope.TagEvaluationStored, r)
}
