//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package retrieval finds the regulation fragments that support an answer.
package retrieval

import (
	"encoding/json"
	"math"
	"strconv"
)

// Score is a relevance value that may be -Inf when a document could not
// be scored. Non-finite values encode as JSON null.
type Score float64

// WorstScore marks a document whose scoring failed.
var WorstScore = Score(math.Inf(-1))

// IsFinite reports whether s is neither infinite nor NaN.
func (s Score) IsFinite() bool {
	f := float64(s)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.IsFinite() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(s), 'g', -1, 64), nil
}

// UnmarshalJSON reads null back as WorstScore.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = WorstScore
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// Relevance is the question-answering score pair. Estimated orders the
// documents; LogitSum is kept for diagnostics. It encodes as a
// two-element array.
type Relevance struct {
	Estimated Score
	LogitSum  Score
}

// WorstRelevance is assigned when scoring fails.
var WorstRelevance = Relevance{Estimated: WorstScore, LogitSum: WorstScore}

// MarshalJSON implements json.Marshaler.
func (r Relevance) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]Score{r.Estimated, r.LogitSum})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Relevance) UnmarshalJSON(data []byte) error {
	var pair [2]Score
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	r.Estimated, r.LogitSum = pair[0], pair[1]
	return nil
}

// Metadata describes where a fragment comes from. The values are opaque
// labels shown to the user.
type Metadata struct {
	Title    string `json:"titulo"`
	Subtitle string `json:"subtitulo,omitempty"`
	Author   string `json:"autor,omitempty"`
	Source   string `json:"fonte,omitempty"`
}

// Document is one retrieved fragment. The relevance fields are filled in
// by re-ranking.
type Document struct {
	ID         string   `json:"id"`
	Similarity float64  `json:"score_distancia"`
	Metadata   Metadata `json:"metadados"`
	Content    string   `json:"conteudo"`

	Relevance Relevance `json:"score_bert"`
	Weighted  Score     `json:"score_ponderado"`
	Answer    string    `json:"resposta_bert"`
}

// PromptLine renders the document for the LLM prompt.
func (d Document) PromptLine() string {
	return d.Metadata.Title + " - " + d.Content
}
