//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// CompletionProvider implements the llm.CompletionProvider interface on
// top of /api/chat.
type CompletionProvider struct {
	client      *Client
	model       string
	temperature float64
	topK        int
	topP        float64
	think       bool
}

// NewCompletionProvider creates a new Ollama completion provider.
func NewCompletionProvider(opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(),
		model:       defaultChatModel,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// WithCompletionModel sets the chat model.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		p.model = model
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

// WithSampling sets top_k and top_p. Zero values leave the model default.
func WithSampling(topK int, topP float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.topK = topK
		p.topP = topP
	}
}

// WithThinking enables the reasoning phase of models that support it.
func WithThinking(enabled bool) CompletionOption {
	return func(p *CompletionProvider) {
		p.think = enabled
	}
}

// WithCompletionClient sets a custom client.
func WithCompletionClient(client *Client) CompletionOption {
	return func(p *CompletionProvider) {
		p.client = client
	}
}

// chatMessage represents a message in Ollama's chat format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request format for the chat API.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Think    bool           `json:"think,omitempty"`
	Format   map[string]any `json:"format,omitempty"`
	Options  *chatOptions   `json:"options,omitempty"`
}

// chatOptions contains generation options.
type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// chatResponse is one NDJSON line of the chat API.
type chatResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done               bool   `json:"done"`
	DoneReason         string `json:"done_reason"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	EvalCount          int    `json:"eval_count"`
	TotalDuration      int64  `json:"total_duration"`
	LoadDuration       int64  `json:"load_duration"`
	PromptEvalDuration int64  `json:"prompt_eval_duration"`
	EvalDuration       int64  `json:"eval_duration"`
}

func (r *chatResponse) metadata() *llm.CompletionMetadata {
	reason := r.DoneReason
	if reason == "" {
		reason = "stop"
	}
	return &llm.CompletionMetadata{
		Model:              r.Model,
		CreatedAt:          r.CreatedAt,
		FinishReason:       reason,
		PromptTokens:       r.PromptEvalCount,
		CompletionTokens:   r.EvalCount,
		TotalDuration:      time.Duration(r.TotalDuration),
		LoadDuration:       time.Duration(r.LoadDuration),
		PromptEvalDuration: time.Duration(r.PromptEvalDuration),
		EvalDuration:       time.Duration(r.EvalDuration),
	}
}

func (p *CompletionProvider) newRequest(req llm.CompletionRequest, stream bool) chatRequest {
	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	return chatRequest{
		Model:    p.model,
		Messages: buildMessages(req),
		Stream:   stream,
		Think:    p.think,
		Options: &chatOptions{
			Temperature: temperature,
			TopK:        p.topK,
			TopP:        p.topP,
			NumPredict:  req.MaxTokens,
		},
	}
}

// CompleteStream generates a streaming completion.
func (p *CompletionProvider) CompleteStream(
	ctx context.Context,
	req llm.CompletionRequest,
) (<-chan llm.StreamChunk, <-chan error) {
	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		resp, err := p.client.request(ctx, http.MethodPost, "/api/chat", p.newRequest(req, true))
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			errChan <- parseError(resp)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				errChan <- &llm.Error{
					Code:    llm.ErrCodeBadResponse,
					Message: fmt.Sprintf("failed to parse stream line: %v", err),
				}
				return
			}

			streamChunk := llm.StreamChunk{Content: chunk.Message.Content}
			if chunk.Done {
				streamChunk.Final = chunk.metadata()
			}

			select {
			case chunkChan <- streamChunk:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("stream read error: %w", err)
			return
		}

		errChan <- &llm.Error{
			Code:    llm.ErrCodeBadResponse,
			Message: "stream ended before the done message",
		}
	}()

	return chunkChan, errChan
}

// CompleteJSON asks for a single answer matching schema, with
// temperature 0.
func (p *CompletionProvider) CompleteJSON(
	ctx context.Context,
	req llm.CompletionRequest,
	schema map[string]any,
) (string, error) {
	req.Temperature = 0
	chatReq := p.newRequest(req, false)
	chatReq.Format = schema

	resp, err := p.client.request(ctx, http.MethodPost, "/api/chat", chatReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", parseError(resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return chatResp.Message.Content, nil
}

// buildMessages converts the request into Ollama chat messages.
func buildMessages(req llm.CompletionRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{
			Role:    llm.RoleSystem,
			Content: req.SystemPrompt,
		})
	}

	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return messages
}

// Ping checks that the Ollama server is up.
func (p *CompletionProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// ProviderName returns "ollama".
func (p *CompletionProvider) ProviderName() string {
	return "ollama"
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

// Ensure CompletionProvider implements the interface.
var _ llm.CompletionProvider = (*CompletionProvider)(nil)
