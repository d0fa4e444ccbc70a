//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
)

// HTTPScorer calls a question-answering model served over HTTP. The
// service receives {"pergunta", "contexto"} and answers with the
// extracted span, the (estimated, logit sum) pair and the weighted score.
type HTTPScorer struct {
	url        string
	httpClient *http.Client
}

// HTTPOption configures an HTTPScorer.
type HTTPOption func(*HTTPScorer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPScorer) {
		s.httpClient = client
	}
}

// NewHTTPScorer creates a scorer posting to url.
func NewHTTPScorer(url string, timeout time.Duration, opts ...HTTPOption) *HTTPScorer {
	s := &HTTPScorer{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scoreRequest struct {
	Question string `json:"pergunta"`
	Context  string `json:"contexto"`
}

type scoreResponse struct {
	Answer    string              `json:"resposta"`
	Relevance retrieval.Relevance `json:"score"`
	Weighted  retrieval.Score     `json:"score_ponderado"`
}

// Score implements Scorer.
func (s *HTTPScorer) Score(ctx context.Context, question, passage string) (Result, error) {
	body, err := json.Marshal(scoreRequest{Question: question, Context: passage})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scorer request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("scorer error (status %d): %s", resp.StatusCode, msg)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("failed to parse scorer response: %w", err)
	}

	return Result{
		Relevance: out.Relevance,
		Weighted:  out.Weighted,
		Answer:    out.Answer,
	}, nil
}
