//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline turns a chat question into a stream of envelope
// messages and a persisted interaction.
package pipeline

import (
	"encoding/json"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/store"
)

// ChatRequest is one question sent by the web client.
type ChatRequest struct {
	Question  string       `json:"pergunta"`
	History   []store.Turn `json:"historico"`
	SessionID string       `json:"id_sessao"`
	ClientID  string       `json:"id_cliente"`
	Intent    *string      `json:"intencao,omitempty"` // nil when the client did not classify
}

// EvaluationRequest is a user's rating of an earlier answer.
type EvaluationRequest struct {
	InteractionID string          `json:"uuid_interacao"`
	Rating        json.RawMessage `json:"avaliacao"`
	Comment       string          `json:"comentario"`
}

// EvaluationResult echoes the request with the outcome.
type EvaluationResult struct {
	InteractionID string          `json:"uuid_interacao"`
	Rating        json.RawMessage `json:"avaliacao"`
	Comment       string          `json:"comentario"`
	Success       bool            `json:"sucesso_avaliacao"`
	Message       string          `json:"mensagem_retorno"`
}

// Health reports whether the service and its LLM endpoint are up.
type Health struct {
	API       string `json:"status_api"`
	LLMClient string `json:"status_cliente_llm"`
}

// Health states.
const (
	StatusActive   = "Ativo"
	StatusInactive = "Inativo"
)

// GenerationResult is the folded outcome of one streamed completion.
type GenerationResult struct {
	Answer           string
	Metadata         *llm.CompletionMetadata
	TimeToFirstToken time.Duration
	Total            time.Duration
	Fragments        int
}
