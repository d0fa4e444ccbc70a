//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package envelope

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestMessage_WireFormat(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected string
	}{
		{
			name:     "status",
			msg:      Status("Consultando documentos"),
			expected: `{"tipo":"controle","descricao":"Informação de Status","mensagem":null,"dados":{"tag":"status","conteudo":"Consultando documentos"}}`,
		},
		{
			name:     "data",
			msg:      Data("Fragmento de Resposta do LLM", TagAnswerFragment, "Olá"),
			expected: `{"tipo":"dados","descricao":"Fragmento de Resposta do LLM","mensagem":null,"dados":{"tag":"frag-resposta-llm","conteudo":"Olá"}}`,
		},
		{
			name:     "error",
			msg:      Error("Falha", "Tente mais tarde."),
			expected: `{"tipo":"erro","descricao":"Falha","mensagem":"Tente mais tarde."}`,
		},
		{
			name:     "info",
			msg:      Info("Aviso", "Processo continuou"),
			expected: `{"tipo":"info","descricao":"Aviso","mensagem":"Processo continuou"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := tt.msg.Marshal()
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if !bytes.HasSuffix(line, []byte("\n")) {
				t.Error("expected trailing newline")
			}
			if got := strings.TrimSuffix(string(line), "\n"); got != tt.expected {
				t.Errorf("got  %s\nwant %s", got, tt.expected)
			}
		})
	}
}

func TestMessage_NoHTMLEscaping(t *testing.T) {
	line, err := Data("doc", TagServeDocument, `<a href="x">link</a> & mais`).Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(line), `<a href=\"x\">link</a> & mais`) {
		t.Errorf("expected raw HTML characters, got %s", line)
	}
}

func TestMessage_Tag(t *testing.T) {
	if got := Status("x").Tag(); got != TagStatus {
		t.Errorf("expected status tag, got %q", got)
	}
	if got := Error("x", "y").Tag(); got != "" {
		t.Errorf("expected empty tag for error, got %q", got)
	}
}

func TestMessage_Write(t *testing.T) {
	var buf bytes.Buffer
	for _, m := range []Message{Status("a"), Info("b", "c")} {
		if err := m.Write(&buf); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, l := range lines {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(l), &decoded); err != nil {
			t.Errorf("line is not valid JSON: %v", err)
		}
	}
}
