//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// CompletionProvider implements the llm.CompletionProvider interface using
// the chat completions API.
type CompletionProvider struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
	topP        float64
}

// NewCompletionProvider creates a new OpenAI completion provider.
func NewCompletionProvider(apiKey string, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(apiKey),
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

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(tokens int) CompletionOption {
	return func(p *CompletionProvider) {
		p.maxTokens = tokens
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

// WithTopP sets nucleus sampling. Zero leaves the API default.
func WithTopP(topP float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.topP = topP
	}
}

// WithCompletionClient sets a custom client.
func WithCompletionClient(client *Client) CompletionOption {
	return func(p *CompletionProvider) {
		p.client = client
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	StreamOptions  *streamOptions  `json:"stream_options,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage usage `json:"usage"`
}

// streamChunk is one SSE "data:" payload.
type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage,omitempty"`
}

func (p *CompletionProvider) newRequest(req llm.CompletionRequest) chatRequest {
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	return chatRequest{
		Model:       p.model,
		Messages:    buildMessages(req),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        p.topP,
	}
}

// CompleteStream generates a streaming completion. Usage arrives in a
// trailing chunk without choices; it is attached to the final fragment.
func (p *CompletionProvider) CompleteStream(
	ctx context.Context,
	req llm.CompletionRequest,
) (<-chan llm.StreamChunk, <-chan error) {
	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		chatReq := p.newRequest(req)
		chatReq.Stream = true
		chatReq.StreamOptions = &streamOptions{IncludeUsage: true}

		resp, err := p.client.request(ctx, http.MethodPost, "/chat/completions", chatReq)
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			errChan <- parseError(resp)
			return
		}

		send := func(c llm.StreamChunk) bool {
			select {
			case chunkChan <- c:
				return true
			case <-ctx.Done():
				errChan <- ctx.Err()
				return false
			}
		}

		meta := &llm.CompletionMetadata{Model: p.model}
		done := false

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				done = true
				break
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue // Skip malformed chunks
			}

			if chunk.Model != "" {
				meta.Model = chunk.Model
			}
			if chunk.Usage != nil {
				meta.PromptTokens = chunk.Usage.PromptTokens
				meta.CompletionTokens = chunk.Usage.CompletionTokens
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if reason := chunk.Choices[0].FinishReason; reason != "" {
				meta.FinishReason = reason
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				if !send(llm.StreamChunk{Content: content}) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("stream read error: %w", err)
			return
		}
		if !done {
			errChan <- &llm.Error{
				Code:    llm.ErrCodeBadResponse,
				Message: "stream ended before [DONE]",
			}
			return
		}

		send(llm.StreamChunk{Final: meta})
	}()

	return chunkChan, errChan
}

// CompleteJSON generates a completion constrained by a JSON schema.
func (p *CompletionProvider) CompleteJSON(
	ctx context.Context,
	req llm.CompletionRequest,
	schema map[string]any,
) (string, error) {
	req.Temperature = 0
	chatReq := p.newRequest(req)
	chatReq.ResponseFormat = &responseFormat{
		Type: "json_schema",
		JSONSchema: &jsonSchemaFormat{
			Name:   "resposta",
			Schema: schema,
			Strict: true,
		},
	}

	resp, err := p.client.request(ctx, http.MethodPost, "/chat/completions", chatReq)
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
	if len(chatResp.Choices) == 0 {
		return "", &llm.Error{Code: llm.ErrCodeBadResponse, Message: "no completion returned"}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// buildMessages converts the request into OpenAI chat messages.
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

// Ping checks the endpoint and credentials.
func (p *CompletionProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// ProviderName returns "openai".
func (p *CompletionProvider) ProviderName() string {
	return "openai"
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

// Ensure CompletionProvider implements the interface.
var _ llm.CompletionProvider = (*CompletionProvider)(nil)
