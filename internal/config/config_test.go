//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
vector_store:
  database:
    host: localhost
    database: normativos
`

const fullYAML = `
server:
  port: 9090
  shutdown_timeout: 10s
environment:
  device: cuda
  llm_device: cuda
  execution_environment: producao
  url_host: https://chat.example.org
application:
  top_n: 8
  max_question_words: 200
  rerank_workers: 4
  llm_timeout: 90s
telemetry:
  log_level: debug
  log_format: json
  log_interactions: true
llm:
  provider: ollama
  model: llama3.1
  base_url: http://ollama:11434
  temperature: 0.2
  top_k: 40
embedding:
  model: nomic-embed-text
vector_store:
  database:
    host: db
    database: normativos
  table: trechos
  text_column: texto
  vector_column: vetor
  title_column: titulo
  subtitle_column: artigo
reranker:
  type: http
  url: http://qa:8000/score
store:
  type: postgres
  database:
    host: db
    database: chat
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullYAML))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected shutdown timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Application.TopN != 8 {
		t.Errorf("expected top_n 8, got %d", cfg.Application.TopN)
	}
	if cfg.Application.LLMTimeout != 90*time.Second {
		t.Errorf("expected llm_timeout 90s, got %v", cfg.Application.LLMTimeout)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.LLM.Temperature)
	}

	// Embedding inherits provider and endpoint from the chat LLM
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected embedding provider ollama, got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.BaseURL != "http://ollama:11434" {
		t.Errorf("expected embedding base_url inherited, got %q", cfg.Embedding.BaseURL)
	}

	if cfg.Store.Type != StorePostgres {
		t.Errorf("expected postgres store, got %q", cfg.Store.Type)
	}
	if cfg.Store.Database.Port != 5432 {
		t.Errorf("expected default store port 5432, got %d", cfg.Store.Database.Port)
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("failed to load minimal config: %v", err)
	}

	if cfg.Application.TopN != 5 {
		t.Errorf("expected default top_n 5, got %d", cfg.Application.TopN)
	}
	if cfg.Application.MaxQuestionWords != 300 {
		t.Errorf("expected default word limit 300, got %d", cfg.Application.MaxQuestionWords)
	}
	if cfg.Application.LLMTimeout != 2*time.Minute {
		t.Errorf("expected default llm timeout 2m, got %v", cfg.Application.LLMTimeout)
	}
	if cfg.VectorStore.Database.SSLMode != "prefer" {
		t.Errorf("expected default ssl_mode 'prefer', got '%s'", cfg.VectorStore.Database.SSLMode)
	}
	if cfg.Store.Type != StoreSQLite {
		t.Errorf("expected sqlite store by default, got %q", cfg.Store.Type)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLLMURL, "http://gpu-box:11434")
	t.Setenv(EnvURLHost, "https://intranet.example.org")
	t.Setenv(EnvSQLitePath, "/var/lib/chat/chat.db")
	t.Setenv(EnvEnvironment, "homologacao")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.LLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("expected llm base_url from env, got %q", cfg.LLM.BaseURL)
	}
	if cfg.Embedding.BaseURL != "http://gpu-box:11434" {
		t.Errorf("expected embedding base_url from env, got %q", cfg.Embedding.BaseURL)
	}
	if cfg.Environment.URLHost != "https://intranet.example.org" {
		t.Errorf("unexpected url_host %q", cfg.Environment.URLHost)
	}
	if cfg.Store.SQLitePath != "/var/lib/chat/chat.db" {
		t.Errorf("unexpected sqlite path %q", cfg.Store.SQLitePath)
	}
	if cfg.Environment.ExecutionEnvironment != "homologacao" {
		t.Errorf("unexpected environment %q", cfg.Environment.ExecutionEnvironment)
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "RAGCHAT_TEST_DOTENV=carregado\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write dotenv: %v", err)
	}
	t.Setenv("RAGCHAT_TEST_DOTENV", "")
	os.Unsetenv("RAGCHAT_TEST_DOTENV")

	if err := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if got := os.Getenv("RAGCHAT_TEST_DOTENV"); got != "carregado" {
		t.Errorf("expected variable from dotenv, got %q", got)
	}
}

func TestLoad_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name:        "missing vector store",
			content:     "server:\n  port: 8080\n",
			errContains: "vector_store.database.host",
		},
		{
			name:        "invalid port",
			content:     minimalYAML + "server:\n  port: 70000\n",
			errContains: "server.port",
		},
		{
			name:        "unknown store",
			content:     minimalYAML + "store:\n  type: mssql\n",
			errContains: "store.type",
		},
		{
			name:        "http reranker without url",
			content:     minimalYAML + "reranker:\n  type: http\n",
			errContains: "reranker.url",
		},
		{
			name:        "examples classifier without file",
			content:     minimalYAML + "intent:\n  classifier: examples\n",
			errContains: "application.intent_examples_file",
		},
		{
			name:        "unsupported provider",
			content:     minimalYAML + "llm:\n  provider: anthropic\n  model: x\n",
			errContains: "llm.provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Error("expected error, got nil")
				return
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("expected error containing '%s', got '%s'",
					tt.errContains, err.Error())
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3.1" {
		t.Errorf("unexpected default llm %+v", cfg.LLM)
	}
	if cfg.Application.TopN != 5 {
		t.Errorf("expected default top_n 5, got %d", cfg.Application.TopN)
	}
}

func TestValidation_MissingFields(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Application: ApplicationConfig{
			TopN: 5, MaxQuestionWords: 300, RerankWorkers: 1,
		},
		Telemetry: TelemetryConfig{LogLevel: "info", LogFormat: "text"},
		VectorStore: VectorStoreConfig{
			Database: DatabaseConfig{Port: 5432},
		},
		Reranker: RerankerConfig{Type: RerankerLexical},
		Store:    StoreConfig{Type: StoreSQLite},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	errStr := err.Error()
	expectedErrors := []string{
		"vector_store.database.host",
		"vector_store.database.database",
		"vector_store.table",
		"vector_store.text_column",
		"vector_store.vector_column",
		"llm.provider",
		"llm.model",
		"embedding.provider",
		"store.sqlite_path",
	}

	for _, expected := range expectedErrors {
		if !strings.Contains(errStr, expected) {
			t.Errorf("expected error to contain '%s', got '%s'", expected, errStr)
		}
	}
}

func TestLoadAPIKey(t *testing.T) {
	key, err := LoadAPIKey(LLMConfig{Provider: "ollama"})
	if err != nil || key != "" {
		t.Errorf("ollama should need no key, got %q, %v", key, err)
	}

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  sk-test \n"), 0o600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	key, err = LoadAPIKey(LLMConfig{Provider: "openai", APIKeyFile: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-test" {
		t.Errorf("expected trimmed key, got %q", key)
	}

	t.Setenv(EnvOpenAIAPIKey, "sk-env")
	key, err = LoadAPIKey(LLMConfig{Provider: "openai"})
	if err != nil || key != "sk-env" {
		t.Errorf("expected key from environment, got %q, %v", key, err)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/test", filepath.Join(homeDir, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}

	for _, tt := range tests {
		result := expandPath(tt.input)
		if result != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
