//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package llm provides interfaces and implementations for LLM providers.
package llm

import (
	"context"
	"errors"
	"net"
	"time"
)

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionProvider generates chat completions. Implementations are
// shared by all in-flight requests and must be safe for concurrent use.
type CompletionProvider interface {
	// CompleteStream generates a streaming completion.
	// The returned channel receives response fragments until completion,
	// then is closed. At most one error is sent on the error channel.
	// Cancelling ctx aborts the underlying HTTP request.
	CompleteStream(
		ctx context.Context,
		req CompletionRequest,
	) (<-chan StreamChunk, <-chan error)

	// CompleteJSON generates a single non-streaming answer constrained to
	// the given JSON schema and returns the raw JSON text.
	CompleteJSON(
		ctx context.Context,
		req CompletionRequest,
		schema map[string]any,
	) (string, error)

	// Ping checks that the endpoint is reachable.
	Ping(ctx context.Context) error

	// ProviderName returns the client identifier, e.g. "ollama".
	ProviderName() string

	// ModelName returns the name of the model being used.
	ModelName() string
}

// DefaultTemperature asks the provider to use its configured temperature.
const DefaultTemperature = -1

// CompletionRequest represents a request to an LLM for completion.
type CompletionRequest struct {
	// SystemPrompt is the system-level instruction for the model.
	SystemPrompt string

	// Messages is the conversation, oldest first, ending with the
	// question being asked.
	Messages []Message

	// MaxTokens is the maximum number of tokens to generate.
	// If 0, uses the provider's default.
	MaxTokens int

	// Temperature controls randomness. If negative, uses the provider's
	// default.
	Temperature float64
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a message in the conversation.
type Message struct {
	Role    string
	Content string
}

// StreamChunk is one fragment of a streaming response. Final is set only
// on the last chunk.
type StreamChunk struct {
	Content string
	Final   *CompletionMetadata
}

// CompletionMetadata is what the endpoint reported about a finished
// generation. It is persisted verbatim with the interaction.
type CompletionMetadata struct {
	Model              string        `json:"model"`
	CreatedAt          string        `json:"created_at,omitempty"`
	FinishReason       string        `json:"finish_reason"`
	PromptTokens       int           `json:"prompt_tokens"`
	CompletionTokens   int           `json:"completion_tokens"`
	TotalDuration      time.Duration `json:"total_duration_ns,omitempty"`
	LoadDuration       time.Duration `json:"load_duration_ns,omitempty"`
	PromptEvalDuration time.Duration `json:"prompt_eval_duration_ns,omitempty"`
	EvalDuration       time.Duration `json:"eval_duration_ns,omitempty"`
}

// TotalTokens returns prompt plus completion tokens.
func (m CompletionMetadata) TotalTokens() int {
	return m.PromptTokens + m.CompletionTokens
}

// Error types for LLM operations.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrCodeRateLimit     = "rate_limit"
	ErrCodeInvalidKey    = "invalid_api_key"
	ErrCodeModelNotFound = "model_not_found"
	ErrCodeModelError    = "model_error"
	ErrCodeTimeout       = "timeout"
	ErrCodeNetworkError  = "network_error"
	ErrCodeBadResponse   = "bad_response"
)

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// ErrorKind classifies err into one of the error codes so that callers can
// report a cause without exposing the raw message.
func ErrorKind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrCodeTimeout
		}
		return ErrCodeNetworkError
	}
	return "unknown"
}

// StatusError builds an *Error for a non-2xx HTTP response.
func StatusError(status int, message string) *Error {
	e := &Error{
		Code:       ErrCodeModelError,
		Message:    message,
		StatusCode: status,
	}
	switch {
	case status == 401 || status == 403:
		e.Code = ErrCodeInvalidKey
	case status == 404:
		e.Code = ErrCodeModelNotFound
	case status == 429:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
	case status >= 500:
		e.Retryable = true
	}
	return e
}
