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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvOpenAIAPIKey is the environment variable holding the OpenAI API key.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// DefaultOpenAIKeyFile is the key file looked up in the home directory.
const DefaultOpenAIKeyFile = ".openai-api-key"

// NeedsAPIKey reports whether the provider authenticates with an API key.
// Ollama does not.
func NeedsAPIKey(provider string) bool {
	return strings.EqualFold(provider, "openai")
}

// LoadAPIKey loads the API key for an LLM configuration with the following
// priority:
//  1. Configured file path (api_key_file)
//  2. Environment variable
//  3. Default file location (~/.openai-api-key)
//
// An empty key and nil error are returned for providers without keys.
func LoadAPIKey(cfg LLMConfig) (string, error) {
	if !NeedsAPIKey(cfg.Provider) {
		return "", nil
	}

	if cfg.APIKeyFile != "" {
		return readKeyFile(expandPath(cfg.APIKeyFile), "OpenAI")
	}

	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		return key, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	path := filepath.Join(homeDir, DefaultOpenAIKeyFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf(
			"OpenAI API key not found: set %s environment variable or create %s",
			EnvOpenAIAPIKey, path)
	}

	return readKeyFile(path, "OpenAI")
}

// readKeyFile reads an API key from a file.
func readKeyFile(path, providerName string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%s API key file not found: %s", providerName, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s API key: %w", providerName, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%s API key file is empty: %s", providerName, path)
	}

	return key, nil
}
