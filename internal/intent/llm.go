//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package intent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

const classifierPrompt = `Classifique a intenção da mensagem do usuário de um assistente de normativos internos:
- consulta: pergunta sobre o conteúdo dos normativos
- doc: pedido para acessar ou baixar os documentos dos normativos
- ping: cumprimento ou início de conversa
- out: assunto fora do escopo dos normativos
- inadeq: mensagem ofensiva ou inadequada
Responda apenas com o JSON pedido.`

// LLMClassifier asks the chat model for a label, constraining the answer
// with a JSON schema.
type LLMClassifier struct {
	provider llm.CompletionProvider
}

// NewLLMClassifier creates a classifier backed by provider.
func NewLLMClassifier(provider llm.CompletionProvider) *LLMClassifier {
	return &LLMClassifier{provider: provider}
}

// Schema is the JSON schema the model must answer with.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intencao": map[string]any{
				"type": "string",
				"enum": Labels(),
			},
		},
		"required":             []string{"intencao"},
		"additionalProperties": false,
	}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, question string) (Intent, error) {
	out, err := c.provider.CompleteJSON(ctx, llm.CompletionRequest{
		SystemPrompt: classifierPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: question}},
		MaxTokens:    32,
	}, Schema())
	if err != nil {
		return Unknown, fmt.Errorf("intent classification failed: %w", err)
	}

	var answer struct {
		Intent string `json:"intencao"`
	}
	if err := json.Unmarshal([]byte(out), &answer); err != nil {
		return Unknown, fmt.Errorf("intent classification returned invalid JSON: %w", err)
	}
	return Parse(answer.Intent), nil
}
