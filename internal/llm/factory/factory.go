//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package factory provides functions to create LLM providers from configuration.
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/ollama"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/openai"
)

// Provider constants for matching configuration values.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// NewEmbeddingProvider creates an embedding provider based on configuration.
func NewEmbeddingProvider(
	cfg config.LLMConfig,
	apiKey string,
	timeout time.Duration,
) (llm.EmbeddingProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		opts := []openai.EmbeddingOption{
			openai.WithEmbeddingClient(openai.NewClient(apiKey,
				openai.WithBaseURL(cfg.BaseURL), openai.WithTimeout(timeout))),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
		}
		return openai.NewEmbeddingProvider(apiKey, opts...), nil

	case ProviderOllama:
		opts := []ollama.EmbeddingOption{
			ollama.WithEmbeddingClient(ollama.NewClient(
				ollama.WithBaseURL(cfg.BaseURL), ollama.WithTimeout(timeout))),
		}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithEmbeddingModel(cfg.Model))
		}
		return ollama.NewEmbeddingProvider(opts...), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewCompletionProvider creates a completion provider based on configuration.
// The timeout bounds a whole request, streaming included.
func NewCompletionProvider(
	cfg config.LLMConfig,
	apiKey string,
	timeout time.Duration,
) (llm.CompletionProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		opts := []openai.CompletionOption{
			openai.WithCompletionClient(openai.NewClient(apiKey,
				openai.WithBaseURL(cfg.BaseURL), openai.WithTimeout(timeout))),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithCompletionModel(cfg.Model))
		}
		if cfg.Temperature != nil {
			opts = append(opts, openai.WithTemperature(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			opts = append(opts, openai.WithTopP(*cfg.TopP))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, openai.WithMaxTokens(cfg.MaxTokens))
		}
		return openai.NewCompletionProvider(apiKey, opts...), nil

	case ProviderOllama:
		opts := []ollama.CompletionOption{
			ollama.WithCompletionClient(ollama.NewClient(
				ollama.WithBaseURL(cfg.BaseURL), ollama.WithTimeout(timeout))),
			ollama.WithThinking(cfg.Think),
		}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithCompletionModel(cfg.Model))
		}
		if cfg.Temperature != nil {
			opts = append(opts, ollama.WithTemperature(*cfg.Temperature))
		}
		if cfg.TopK > 0 || cfg.TopP != nil {
			var topP float64
			if cfg.TopP != nil {
				topP = *cfg.TopP
			}
			opts = append(opts, ollama.WithSampling(cfg.TopK, topP))
		}
		return ollama.NewCompletionProvider(opts...), nil

	default:
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
}
