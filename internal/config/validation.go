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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateApplication()...)
	errs = append(errs, c.validateTelemetry()...)

	errs = append(errs, validateLLM("llm", c.LLM, []string{"ollama", "openai"})...)
	errs = append(errs, validateLLM("embedding", c.Embedding, []string{"ollama", "openai"})...)

	errs = append(errs, c.validateVectorStore()...)
	errs = append(errs, c.validateReranker()...)
	errs = append(errs, c.validateIntent()...)
	errs = append(errs, c.validateStore()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.TLS.Enabled {
		errs = append(errs, requireFile("server.tls.cert_file", c.Server.TLS.CertFile)...)
		errs = append(errs, requireFile("server.tls.key_file", c.Server.TLS.KeyFile)...)
	}

	return errs
}

func requireFile(field, path string) ValidationErrors {
	if path == "" {
		return ValidationErrors{{Field: field, Message: "required when TLS is enabled"}}
	}
	if _, err := os.Stat(expandPath(path)); err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("file not found: %s", path)}}
	}
	return nil
}

func (c *Config) validateApplication() ValidationErrors {
	var errs ValidationErrors
	app := c.Application

	if app.TopN < 1 {
		errs = append(errs, ValidationError{Field: "application.top_n", Message: "must be positive"})
	}
	if app.MaxQuestionWords < 1 {
		errs = append(errs, ValidationError{Field: "application.max_question_words", Message: "must be positive"})
	}
	if app.RerankWorkers < 1 {
		errs = append(errs, ValidationError{Field: "application.rerank_workers", Message: "must be positive"})
	}
	if app.LLMTimeout < 0 {
		errs = append(errs, ValidationError{Field: "application.llm_timeout", Message: "must be non-negative"})
	}
	if app.PromptsFile != "" {
		if _, err := os.Stat(expandPath(app.PromptsFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "application.prompts_file",
				Message: fmt.Sprintf("file not found: %s", app.PromptsFile),
			})
		}
	}

	return errs
}

func (c *Config) validateTelemetry() ValidationErrors {
	var errs ValidationErrors

	if !oneOf(c.Telemetry.LogLevel, "debug", "info", "warn", "error") {
		errs = append(errs, ValidationError{
			Field:   "telemetry.log_level",
			Message: "must be one of: debug, info, warn, error",
		})
	}
	if !oneOf(c.Telemetry.LogFormat, "text", "json") {
		errs = append(errs, ValidationError{
			Field:   "telemetry.log_format",
			Message: "must be one of: text, json",
		})
	}

	return errs
}

// validateVectorStore validates the similarity search source.
func (c *Config) validateVectorStore() ValidationErrors {
	var errs ValidationErrors
	vs := c.VectorStore

	errs = append(errs, validateDatabase("vector_store.database", vs.Database)...)

	required := map[string]string{
		"vector_store.table":         vs.Table,
		"vector_store.text_column":   vs.TextColumn,
		"vector_store.vector_column": vs.VectorColumn,
		"vector_store.title_column":  vs.TitleColumn,
	}
	for _, field := range []string{
		"vector_store.table",
		"vector_store.text_column",
		"vector_store.vector_column",
		"vector_store.title_column",
	} {
		if required[field] == "" {
			errs = append(errs, ValidationError{Field: field, Message: "required"})
		}
	}

	if f := vs.Filter; f != nil {
		switch strings.ToUpper(f.Logic) {
		case "", "AND", "OR":
		default:
			errs = append(errs, ValidationError{
				Field:   "vector_store.filter.logic",
				Message: "must be AND or OR",
			})
		}
		for i, cond := range f.Conditions {
			if cond.Column == "" || cond.Operator == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("vector_store.filter.conditions[%d]", i),
					Message: "column and operator are required",
				})
			}
		}
	}

	return errs
}

func (c *Config) validateReranker() ValidationErrors {
	var errs ValidationErrors

	switch c.Reranker.Type {
	case RerankerLexical:
	case RerankerHTTP:
		if c.Reranker.URL == "" {
			errs = append(errs, ValidationError{
				Field:   "reranker.url",
				Message: "required when reranker.type is http",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "reranker.type",
			Message: "must be one of: http, lexical",
		})
	}

	return errs
}

func (c *Config) validateIntent() ValidationErrors {
	var errs ValidationErrors

	switch c.Intent.Classifier {
	case "", "none", "llm":
	case "examples":
		if c.Application.IntentExamplesFile == "" {
			errs = append(errs, ValidationError{
				Field:   "application.intent_examples_file",
				Message: "required when intent.classifier is examples",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "intent.classifier",
			Message: "must be one of: examples, llm, none",
		})
	}

	return errs
}

// validateStore validates the interaction store selection.
func (c *Config) validateStore() ValidationErrors {
	var errs ValidationErrors

	switch c.Store.Type {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, ValidationError{Field: "store.sqlite_path", Message: "required"})
		}
	case StorePostgres:
		errs = append(errs, validateDatabase("store.database", c.Store.Database)...)
	default:
		errs = append(errs, ValidationError{
			Field:   "store.type",
			Message: "must be one of: sqlite, postgres",
		})
	}

	return errs
}

// validateDatabase validates database configuration.
func validateDatabase(prefix string, db DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".host",
			Message: "required",
		})
	}

	if db.Database == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".database",
			Message: "required",
		})
	}

	if db.Port < 1 || db.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".port",
			Message: "must be between 1 and 65535",
		})
	}

	if db.SSLMode != "" && !oneOf(db.SSLMode,
		"disable", "allow", "prefer", "require", "verify-ca", "verify-full") {
		errs = append(errs, ValidationError{
			Field:   prefix + ".ssl_mode",
			Message: "must be one of: disable, allow, prefer, require, verify-ca, verify-full",
		})
	}

	return errs
}

// validateLLM validates LLM configuration (required fields).
func validateLLM(prefix string, llm LLMConfig, validProviders []string) ValidationErrors {
	var errs ValidationErrors

	if llm.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provider",
			Message: "required",
		})
	} else if !oneOf(strings.ToLower(llm.Provider), validProviders...) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provider",
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validProviders, ", ")),
		})
	}

	if llm.Model == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".model",
			Message: "required",
		})
	}

	if llm.Temperature != nil && (*llm.Temperature < 0 || *llm.Temperature > 2) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".temperature",
			Message: "must be between 0 and 2",
		})
	}

	return errs
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
