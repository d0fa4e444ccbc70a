//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "pgedge-rag-chat.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/pgedge/" + ConfigFileName
)

// Environment variables that override values from the configuration file.
const (
	EnvLLMURL      = "RAGCHAT_LLM_URL"
	EnvURLHost     = "RAGCHAT_URL_HOST"
	EnvStoreType   = "RAGCHAT_STORE_TYPE"
	EnvSQLitePath  = "RAGCHAT_SQLITE_PATH"
	EnvDevice      = "RAGCHAT_DEVICE"
	EnvLLMDevice   = "RAGCHAT_LLM_DEVICE"
	EnvEnvironment = "RAGCHAT_ENVIRONMENT"
)

// LoadEnv reads KEY=VALUE pairs from the given dotenv files into the process
// environment. Variables already set are left alone. Missing files are not
// an error; with no arguments ".env" in the working directory is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads the configuration from the specified path, or searches
// default locations if path is empty.
//
// Search order:
//  1. Explicit path (if provided)
//  2. /etc/pgedge/pgedge-rag-chat.yaml
//  3. pgedge-rag-chat.yaml in the binary's directory
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	return loadFromFile(configPath)
}

// findConfigFile finds the configuration file using the search order.
func findConfigFile(explicitPath string) (string, error) {
	// An explicit path must exist
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no configuration file found; searched: %v", searchPaths)
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile loads and parses the configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a configuration from YAML bytes, layering them over the
// defaults and applying environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides replaces file values with any environment variables
// that are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvLLMURL); v != "" {
		cfg.LLM.BaseURL = v
		if cfg.Embedding.Provider == cfg.LLM.Provider && cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = v
		}
	}
	if v := os.Getenv(EnvURLHost); v != "" {
		cfg.Environment.URLHost = v
	}
	if v := os.Getenv(EnvStoreType); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		cfg.Environment.Device = v
	}
	if v := os.Getenv(EnvLLMDevice); v != "" {
		cfg.Environment.LLMDevice = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		cfg.Environment.ExecutionEnvironment = v
	}
}

// applyDefaults fills values left empty by the file.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Application.TopN == 0 {
		cfg.Application.TopN = def.Application.TopN
	}
	if cfg.Application.MaxQuestionWords == 0 {
		cfg.Application.MaxQuestionWords = def.Application.MaxQuestionWords
	}
	if cfg.Application.RerankWorkers == 0 {
		cfg.Application.RerankWorkers = 1
	}
	if cfg.Application.LLMTimeout == 0 {
		cfg.Application.LLMTimeout = def.Application.LLMTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Reranker.Timeout == 0 {
		cfg.Reranker.Timeout = def.Reranker.Timeout
	}
	if cfg.VectorStore.IDColumn == "" {
		cfg.VectorStore.IDColumn = "id"
	}

	// The embedding endpoint follows the chat endpoint unless configured
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = cfg.LLM.Provider
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == cfg.LLM.Provider {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embedding.APIKeyFile == "" && cfg.Embedding.Provider == cfg.LLM.Provider {
		cfg.Embedding.APIKeyFile = cfg.LLM.APIKeyFile
	}

	for _, db := range []*DatabaseConfig{&cfg.VectorStore.Database, &cfg.Store.Database} {
		if db.Port == 0 {
			db.Port = 5432
		}
		if db.SSLMode == "" {
			db.SSLMode = "prefer"
		}
	}
}
