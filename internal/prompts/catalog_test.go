//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package prompts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

func TestRAGPrompt(t *testing.T) {
	c := Default()
	got := c.RAGPrompt("Qual o prazo?", []string{
		"Resolução 12 - O prazo é de 10 dias.",
		"Portaria 3 - Prorrogável uma vez.",
	})

	want := "DOCUMENTOS:\nResolução 12 - O prazo é de 10 dias.\n" +
		"Portaria 3 - Prorrogável uma vez.\nPERGUNTA: Qual o prazo?"
	if got != want {
		t.Errorf("RAGPrompt() =\n%q\nwant\n%q", got, want)
	}
}

func TestRAGPrompt_QuestionWithPlaceholder(t *testing.T) {
	// A question containing a placeholder must not be expanded twice
	c := Default()
	got := c.RAGPrompt("o que é {docs}?", []string{"A"})
	if !strings.HasSuffix(got, "PERGUNTA: o que é {docs}?") {
		t.Errorf("unexpected prompt %q", got)
	}
}

func TestSmallTalkPrompt(t *testing.T) {
	c := Default()
	c.SmallTalk = SmallTalk{
		Ping:     "ping: {question}",
		Out:      "out: {question}",
		Fallback: "fallback: {question}",
	}

	tests := []struct {
		label string
		want  string
	}{
		{"ping", "ping: olá"},
		{"out", "out: olá"},
		{"", "fallback: olá"},
		{"desconhecida", "fallback: olá"},
	}
	for _, tt := range tests {
		if got := c.SmallTalkPrompt(tt.label, "olá"); got != tt.want {
			t.Errorf("SmallTalkPrompt(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestInadequateAnswer(t *testing.T) {
	c := Default()
	c.Inadequate = InadequatePools{
		Reaction:    []string{"R0", "R1"},
		Warning:     []string{"A0", "A1", "A2"},
		Information: []string{"I0"},
		Redirect:    []string{"D0", "D1"},
	}

	last := func(n int) int { return n - 1 }
	if got := c.InadequateAnswer(last); got != "R1 A2 I0 D1" {
		t.Errorf("InadequateAnswer() = %q", got)
	}

	// Random draws always come from the right pools, in order
	for i := 0; i < 20; i++ {
		parts := strings.Split(c.InadequateAnswer(nil), " ")
		if len(parts) != 4 {
			t.Fatalf("expected 4 parts, got %v", parts)
		}
		for j, prefix := range []string{"R", "A", "I", "D"} {
			if !strings.HasPrefix(parts[j], prefix) {
				t.Errorf("part %d = %q, want prefix %s", j, parts[j], prefix)
			}
		}
	}
}

func TestDocumentAnswer(t *testing.T) {
	c := Default()
	c.DocumentMessage = "Acesse TAG_INSERCAO_URL_HOST/docs ou TAG_INSERCAO_URL_HOST/faq"
	got := c.DocumentAnswer("https://chat.example.org")
	want := "Acesse https://chat.example.org/docs ou https://chat.example.org/faq"
	if got != want {
		t.Errorf("DocumentAnswer() = %q, want %q", got, want)
	}
}

func TestParse_Overlay(t *testing.T) {
	c, err := Parse([]byte(`
status:
  consulta: Buscando...
inadequate:
  reacao: ["Eita!"]
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Status.Consulting != "Buscando..." {
		t.Errorf("unexpected status text %q", c.Status.Consulting)
	}
	if c.Status.Generating != Default().Status.Generating {
		t.Error("unset fields should keep defaults")
	}
	if len(c.Inadequate.Reaction) != 1 || c.Inadequate.Reaction[0] != "Eita!" {
		t.Errorf("unexpected reaction pool %v", c.Inadequate.Reaction)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "status: [unterminated"},
		{"template without docs", "rag_template: 'PERGUNTA: {question}'"},
		{"empty pool", "inadequate:\n  direcionamento: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(path, []byte("status:\n  consulta: v1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	initial, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	source := NewSource(initial)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWatcher(path, source, logger)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan struct{}, 4)
	go w.Run(ctx, reloaded)

	// A broken file is ignored
	if err := os.WriteFile(path, []byte("rag_template: 'sem marcadores'\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("status:\n  consulta: v2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for source.Current().Status.Consulting != "v2" {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatalf("catalog not reloaded, still %q", source.Current().Status.Consulting)
		}
	}
}
