//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *CompletionProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", WithBaseURL(server.URL))
	return NewCompletionProvider("test-key",
		WithCompletionClient(client),
		WithCompletionModel("gpt-4o-mini"),
	)
}

func collect(t *testing.T, chunks <-chan llm.StreamChunk, errs <-chan error) (string, *llm.CompletionMetadata, error) {
	t.Helper()
	var sb strings.Builder
	var final *llm.CompletionMetadata
	for c := range chunks {
		sb.WriteString(c.Content)
		if c.Final != nil {
			final = c.Final
		}
	}
	return sb.String(), final, <-errs
}

func TestCompletionProvider_CompleteStream(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or incorrect Authorization header")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if !req.Stream || req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
			t.Error("expected streaming request with usage")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"As férias ", "são de 30 dias."} {
			fmt.Fprintf(w, "data: {\"model\":\"gpt-4o-mini\",\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":40,\"completion_tokens\":9}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Responda em português.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Quantos dias de férias?"}},
		Temperature:  llm.DefaultTemperature,
	})

	text, final, err := collect(t, chunks, errs)
	if err != nil {
		t.Fatalf("CompleteStream failed: %v", err)
	}
	if text != "As férias são de 30 dias." {
		t.Errorf("unexpected text %q", text)
	}
	if final == nil {
		t.Fatal("expected final metadata")
	}
	if final.FinishReason != "stop" || final.TotalTokens() != 49 {
		t.Errorf("unexpected metadata %+v", final)
	}
}

func TestCompletionProvider_CompleteStream_Unauthorized(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "oi"}},
	})
	_, _, err := collect(t, chunks, errs)
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := llm.ErrorKind(err); kind != llm.ErrCodeInvalidKey {
		t.Errorf("expected %s, got %s", llm.ErrCodeInvalidKey, kind)
	}
}

func TestCompletionProvider_CompleteStream_Truncated(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"meia\"}}]}\n\n")
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{})
	text, final, err := collect(t, chunks, errs)
	if err == nil {
		t.Fatal("expected error for stream without [DONE]")
	}
	if text != "meia" || final != nil {
		t.Errorf("unexpected output %q, %+v", text, final)
	}
	if llm.ErrorKind(err) != llm.ErrCodeBadResponse {
		t.Errorf("expected bad_response, got %s", llm.ErrorKind(err))
	}
}

func TestCompletionProvider_CompleteJSON(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Fatalf("expected json_schema response format, got %+v", req.ResponseFormat)
		}
		if req.Temperature != 0 {
			t.Errorf("expected temperature 0, got %f", req.Temperature)
		}

		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"{\"intencao\":\"CONSULTA\"}"},"finish_reason":"stop"}]}`))
	})

	out, err := provider.CompleteJSON(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Qual o prazo?"}},
	}, map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if out != `{"intencao":"CONSULTA"}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCompletionProvider_Ping(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	if err := provider.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if provider.ProviderName() != "openai" {
		t.Errorf("unexpected provider name %q", provider.ProviderName())
	}
}

func TestCompletionProvider_ModelName(t *testing.T) {
	provider := NewCompletionProvider("test-key")
	if provider.ModelName() != defaultChatModel {
		t.Errorf("expected %s, got %s", defaultChatModel, provider.ModelName())
	}

	provider = NewCompletionProvider("test-key", WithCompletionModel("gpt-4"))
	if provider.ModelName() != "gpt-4" {
		t.Errorf("expected gpt-4, got %s", provider.ModelName())
	}
}

func TestCompletionProvider_Options(t *testing.T) {
	provider := NewCompletionProvider(
		"test-key",
		WithMaxTokens(1000),
		WithTemperature(0.5),
		WithTopP(0.9),
	)

	if provider.maxTokens != 1000 {
		t.Errorf("expected maxTokens 1000, got %d", provider.maxTokens)
	}
	if provider.temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %f", provider.temperature)
	}

	req := provider.newRequest(llm.CompletionRequest{Temperature: 0.1, MaxTokens: 20})
	if req.Temperature != 0.1 || req.MaxTokens != 20 || req.TopP != 0.9 {
		t.Errorf("request overrides not applied: %+v", req)
	}
}
