//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// pgEdge RAG chat server.
package config

import "time"

// Config is the root configuration structure for the server.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Environment EnvironmentConfig `yaml:"environment"`
	Application ApplicationConfig `yaml:"application"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   LLMConfig         `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Reranker    RerankerConfig    `yaml:"reranker"`
	Intent      IntentConfig      `yaml:"intent"`
	Store       StoreConfig       `yaml:"store"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	Port            int           `yaml:"port"`
	TLS             TLSConfig     `yaml:"tls"`
	CORS            CORSConfig    `yaml:"cors"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// EnvironmentConfig describes where the process runs. These labels are
// recorded on every persisted interaction.
type EnvironmentConfig struct {
	Device               string `yaml:"device"`
	LLMDevice            string `yaml:"llm_device"`
	ExecutionEnvironment string `yaml:"execution_environment"`
	URLHost              string `yaml:"url_host"` // Public base URL, substituted into the document message
}

// ApplicationConfig holds the answer-generation tunables.
type ApplicationConfig struct {
	TopN               int           `yaml:"top_n"`
	MaxQuestionWords   int           `yaml:"max_question_words"`
	RerankWorkers      int           `yaml:"rerank_workers"` // 1 scores documents sequentially
	LLMTimeout         time.Duration `yaml:"llm_timeout"`
	PromptsFile        string        `yaml:"prompts_file"`
	IntentExamplesFile string        `yaml:"intent_examples_file"`
}

// TelemetryConfig controls logging output.
type TelemetryConfig struct {
	LogLevel        string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat       string `yaml:"log_format"` // text or json
	LogInteractions bool   `yaml:"log_interactions"`
}

// LLMConfig contains settings for an LLM provider.
type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Temperature *float64 `yaml:"temperature"`
	TopK        int      `yaml:"top_k"`
	TopP        *float64 `yaml:"top_p"`
	Think       bool     `yaml:"think"`
	MaxTokens   int      `yaml:"max_tokens"`
	APIKeyFile  string   `yaml:"api_key_file"` // Path to file containing the API key
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Certificate-based authentication
	SSLCert   string `yaml:"ssl_cert"`
	SSLKey    string `yaml:"ssl_key"`
	SSLRootCA string `yaml:"ssl_root_ca"`
}

// VectorStoreConfig describes the table holding the embedded regulation
// fragments and which columns carry each metadata field.
type VectorStoreConfig struct {
	Database         DatabaseConfig `yaml:"database"`
	Table            string         `yaml:"table"`
	IDColumn         string         `yaml:"id_column"`
	TextColumn       string         `yaml:"text_column"`
	VectorColumn     string         `yaml:"vector_column"`
	TitleColumn      string         `yaml:"title_column"`
	SubtitleColumn   string         `yaml:"subtitle_column"`
	AuthorColumn     string         `yaml:"author_column"`
	SourceColumn     string         `yaml:"source_column"`
	CollectionFilter string         `yaml:"collection_filter"` // Raw SQL WHERE fragment (admin-only)
	Filter           *Filter        `yaml:"filter"`
}

// Filter is a structured WHERE clause applied to every similarity query.
// Values are always sent as query parameters.
type Filter struct {
	Conditions []FilterCondition `yaml:"conditions"`
	Logic      string            `yaml:"logic"` // AND (default) or OR
}

// FilterCondition compares one column with a value.
type FilterCondition struct {
	Column   string `yaml:"column"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// RerankerConfig selects the relevance scorer.
type RerankerConfig struct {
	Type    string        `yaml:"type"` // http or lexical
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// IntentConfig selects how questions without an intent label are
// classified.
type IntentConfig struct {
	Classifier string  `yaml:"classifier"` // examples, llm or none
	MinScore   float64 `yaml:"min_score"`
}

// StoreConfig selects the interaction storage engine.
type StoreConfig struct {
	Type       string         `yaml:"type"` // sqlite or postgres
	SQLitePath string         `yaml:"sqlite_path"`
	Database   DatabaseConfig `yaml:"database"`
}

// Store engine names.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Reranker types.
const (
	RerankerHTTP    = "http"
	RerankerLexical = "lexical"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
		},
		Environment: EnvironmentConfig{
			Device:               "cpu",
			LLMDevice:            "cpu",
			ExecutionEnvironment: "desenvolvimento",
			URLHost:              "http://localhost:8080",
		},
		Application: ApplicationConfig{
			TopN:             5,
			MaxQuestionWords: 300,
			RerankWorkers:    1,
			LLMTimeout:       2 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
		},
		VectorStore: VectorStoreConfig{
			Table:        "fragmentos_normativos",
			IDColumn:     "id",
			TextColumn:   "conteudo",
			VectorColumn: "embedding",
			TitleColumn:  "titulo",
		},
		Reranker: RerankerConfig{
			Type:    RerankerLexical,
			Timeout: 30 * time.Second,
		},
		Intent: IntentConfig{
			Classifier: "none",
		},
		Store: StoreConfig{
			Type:       StoreSQLite,
			SQLitePath: "interacoes.db",
		},
	}
}
