//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package store defines how chat interactions and their evaluations are
// recorded. Engines live in the sqlite and postgres sub-packages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
)

var (
	// ErrDuplicateEvaluation means more than one evaluation row exists for
	// a single interaction.
	ErrDuplicateEvaluation = errors.New("more than one evaluation recorded for interaction")

	// ErrInteractionNotFound means the evaluated interaction does not exist.
	ErrInteractionNotFound = errors.New("interaction not found")

	// ErrEvaluationExists means an insert lost the race against another
	// evaluation of the same interaction.
	ErrEvaluationExists = errors.New("evaluation already recorded for interaction")
)

// Turn is one earlier question and the answer it received.
type Turn struct {
	Question string
	Answer   string
}

// MarshalJSON encodes the turn as a two-element array, the shape the web
// client sends.
func (t Turn) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Question, t.Answer})
}

// UnmarshalJSON accepts a [question, answer] array.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("history turn must be a [question, answer] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("history turn must have 2 elements, got %d", len(pair))
	}
	t.Question, t.Answer = pair[0], pair[1]
	return nil
}

// Interaction is one complete question and answer round trip. Durations
// and LLM fields are nil when the strategy that produced the answer did
// not go through that phase.
type Interaction struct {
	ID                   string
	CreatedAt            time.Time
	Question             string
	Device               string
	LLMDevice            string
	Documents            []retrieval.Document
	RetrievalDuration    *time.Duration
	RerankDuration       *time.Duration
	SystemTemplate       *string
	History              []Turn
	LLMClient            *string
	LLMModel             *string
	TimeToFirstToken     *time.Duration
	LLMDuration          *time.Duration
	Answer               string
	Completion           json.RawMessage // provider metadata, nil when no LLM ran
	SessionID            string
	ClientID             string
	Intent               string
	ExecutionEnvironment string
}

// Evaluation is a user's rating of an interaction. Rating holds the JSON
// text of whatever the client sent (number, boolean, string or null).
type Evaluation struct {
	ID            string
	InteractionID string
	Rating        json.RawMessage
	Comment       string
	UpdatedAt     time.Time
}

// Store persists interactions and evaluations. Implementations must be
// safe for concurrent use.
type Store interface {
	// InsertInteraction writes the interaction row and one child row per
	// document in a single transaction, and returns the generated id.
	InsertInteraction(ctx context.Context, in *Interaction) (string, error)

	// FindEvaluations returns every evaluation recorded for the
	// interaction; a healthy store returns zero or one.
	FindEvaluations(ctx context.Context, interactionID string) ([]Evaluation, error)

	// InsertEvaluation adds a new evaluation and returns rows affected.
	InsertEvaluation(ctx context.Context, ev *Evaluation) (int64, error)

	// UpdateEvaluation replaces the rating and comment of the existing
	// evaluation for ev.InteractionID and returns rows affected.
	UpdateEvaluation(ctx context.Context, ev *Evaluation) (int64, error)

	// Ping checks the engine is reachable.
	Ping(ctx context.Context) error

	// Close releases the engine's resources.
	Close() error
}

// Seconds converts an optional duration to fractional seconds, the unit
// used by the timing columns.
func Seconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	s := d.Seconds()
	return &s
}

// Duration converts optional fractional seconds back to a duration.
func Duration(seconds *float64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds * float64(time.Second))
	return &d
}

// EncodeHistory returns the JSON text stored in the history column.
func EncodeHistory(history []Turn) (string, error) {
	if history == nil {
		history = []Turn{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("failed to encode history: %w", err)
	}
	return string(data), nil
}

// DocumentRow is the flattened form of a ranked document as stored in the
// child table.
type DocumentRow struct {
	Position    int
	DocumentID  string
	Similarity  float64
	Title       string
	Subtitle    string
	Author      string
	Source      string
	Content     string
	Estimated   *float64
	LogitSum    *float64
	Weighted    *float64
	ExtractedQA string
}

// DocumentRows flattens documents for the child table. Non-finite scores
// become NULL.
func DocumentRows(docs []retrieval.Document) []DocumentRow {
	rows := make([]DocumentRow, len(docs))
	for i, d := range docs {
		rows[i] = DocumentRow{
			Position:    i,
			DocumentID:  d.ID,
			Similarity:  d.Similarity,
			Title:       d.Metadata.Title,
			Subtitle:    d.Metadata.Subtitle,
			Author:      d.Metadata.Author,
			Source:      d.Metadata.Source,
			Content:     d.Content,
			Estimated:   finite(d.Relevance.Estimated),
			LogitSum:    finite(d.Relevance.LogitSum),
			Weighted:    finite(d.Weighted),
			ExtractedQA: d.Answer,
		}
	}
	return rows
}

func finite(s retrieval.Score) *float64 {
	if !s.IsFinite() {
		return nil
	}
	v := float64(s)
	return &v
}
