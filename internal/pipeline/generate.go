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
	"fmt"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/envelope"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// buildMessages lays out the conversation for the LLM: each earlier turn
// as a user and assistant pair, oldest first, then the new prompt.
func buildMessages(x *exchange, prompt string) []llm.Message {
	messages := make([]llm.Message, 0, 2*len(x.req.History)+1)
	for _, t := range x.req.History {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: t.Question},
			llm.Message{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
}

// generate streams a completion for prompt, relaying every fragment as
// it arrives and folding them into a GenerationResult. On failure it
// emits an Error envelope and returns false; fragments already sent stay
// sent.
func (o *Orchestrator) generate(x *exchange, prompt string) (*GenerationResult, bool) {
	ctx, cancel := context.WithTimeout(x.ctx, o.llmTimeout)
	defer cancel()

	chunks, errs := o.completion.CompleteStream(ctx, llm.CompletionRequest{
		SystemPrompt: x.catalog.SystemPrompt,
		Messages:     buildMessages(x, prompt),
		Temperature:  llm.DefaultTemperature,
	})

	var answer strings.Builder
	result := &GenerationResult{}
	start := time.Now()

	for chunk := range chunks {
		if chunk.Final != nil {
			result.Metadata = chunk.Final
		}
		if chunk.Content == "" {
			continue
		}
		if result.Fragments == 0 {
			result.TimeToFirstToken = time.Since(start)
			x.logger.Debug("first fragment received", "after", result.TimeToFirstToken)
		}
		result.Fragments++
		answer.WriteString(chunk.Content)

		if !x.emit(envelope.Data(descAnswerFragment, envelope.TagAnswerFragment, chunk.Content)) {
			return nil, false
		}
	}

	if err := <-errs; err != nil {
		if x.ctx.Err() != nil {
			return nil, false
		}
		kind := llm.ErrorKind(err)
		provider, model := o.completion.ProviderName(), o.completion.ModelName()
		x.logger.Error("answer generation failed",
			"provider", provider,
			"model", model,
			"kind", kind,
			"retryable", llm.IsRetryable(err),
			"fragments", result.Fragments,
			"error", err,
		)
		x.emit(envelope.Error(
			fmt.Sprintf("Falha na Geração da Resposta (%s offline ou %s não disponível. %s)",
				provider, model, kind),
			"Houve um problema geração de sua resposta. Tente mais tarde. (Tipo do erro: "+kind+")",
		))
		return nil, false
	}

	result.Total = time.Since(start)
	result.Answer = answer.String()
	x.logger.Debug("answer generated",
		"duration", result.Total,
		"fragments", result.Fragments,
	)
	return result, true
}
