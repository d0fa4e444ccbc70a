//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/database"
	"github.com/pgEdge/pgedge-rag-chat/internal/intent"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm/factory"
	"github.com/pgEdge/pgedge-rag-chat/internal/prompts"
	"github.com/pgEdge/pgedge-rag-chat/internal/rerank"
	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
	"github.com/pgEdge/pgedge-rag-chat/internal/store"
	"github.com/pgEdge/pgedge-rag-chat/internal/store/postgres"
	"github.com/pgEdge/pgedge-rag-chat/internal/store/sqlite"
)

const (
	applicationName  = "pgedge-rag-chat"
	embeddingTimeout = 30 * time.Second
)

// Manager builds the answer pipeline from configuration and owns the
// resources behind it.
type Manager struct {
	mu           sync.Mutex
	orchestrator *Orchestrator
	evaluator    *Evaluator
	vectorPool   *database.Pool
	store        store.Store
	watcher      *prompts.Watcher
	logger       *slog.Logger
	closed       bool
}

// ManagerConfig contains configuration for creating a Manager.
type ManagerConfig struct {
	Config *config.Config
	Logger *slog.Logger
}

// NewManager connects every backend named in the configuration. On error
// anything already opened is released.
func NewManager(ctx context.Context, cfg ManagerConfig) (_ *Manager, err error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Config

	m := &Manager{logger: logger}
	defer func() {
		if err != nil {
			m.Close()
		}
	}()

	embeddingKey, err := config.LoadAPIKey(c.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding API key: %w", err)
	}
	completionKey, err := config.LoadAPIKey(c.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to load LLM API key: %w", err)
	}

	embedding, err := factory.NewEmbeddingProvider(c.Embedding, embeddingKey, embeddingTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	completion, err := factory.NewCompletionProvider(c.LLM, completionKey, c.Application.LLMTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion provider: %w", err)
	}

	m.vectorPool, err = database.NewPool(ctx, c.VectorStore.Database,
		database.WithApplicationName(applicationName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vector store: %w", err)
	}
	searcher, err := database.NewSearcher(m.vectorPool.Pool(), c.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare similarity query: %w", err)
	}

	m.store, err = newStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}

	classifier, err := newClassifier(c, completion)
	if err != nil {
		return nil, err
	}

	source, err := m.loadPrompts(c.Application.PromptsFile)
	if err != nil {
		return nil, err
	}

	m.orchestrator = NewOrchestrator(OrchestratorConfig{
		Retriever:        retrieval.NewVectorRetriever(embedding, searcher),
		Scorer:           newScorer(c.Reranker),
		Completion:       completion,
		Classifier:       classifier,
		Store:            m.store,
		Prompts:          source,
		Environment:      c.Environment,
		TopN:             c.Application.TopN,
		MaxQuestionWords: c.Application.MaxQuestionWords,
		RerankWorkers:    c.Application.RerankWorkers,
		LLMTimeout:       c.Application.LLMTimeout,
		LogInteractions:  c.Telemetry.LogInteractions,
		Logger:           logger.With("component", "orchestrator"),
	})
	m.evaluator = NewEvaluator(m.store, logger.With("component", "evaluator"))

	logger.Info("pipeline ready",
		"llm_provider", completion.ProviderName(),
		"llm_model", completion.ModelName(),
		"embedding_model", embedding.ModelName(),
		"reranker", c.Reranker.Type,
		"intent_classifier", c.Intent.Classifier,
		"store", c.Store.Type,
	)

	return m, nil
}

// newStore opens the configured interaction store.
func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Database,
			database.WithApplicationName(applicationName))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to interaction store: %w", err)
		}
		s, err := postgres.New(ctx, pool.Pool())
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	case config.StoreSQLite, "":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open interaction store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// newScorer builds the configured relevance scorer.
func newScorer(cfg config.RerankerConfig) rerank.Scorer {
	if cfg.Type == config.RerankerHTTP {
		return rerank.NewHTTPScorer(cfg.URL, cfg.Timeout)
	}
	return rerank.NewLexicalScorer()
}

// newClassifier builds the configured intent classifier; nil means
// unlabelled questions are treated as small talk.
func newClassifier(cfg *config.Config, completion llm.CompletionProvider) (intent.Classifier, error) {
	switch cfg.Intent.Classifier {
	case "examples":
		examples, err := intent.LoadExamples(cfg.Application.IntentExamplesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load intent examples: %w", err)
		}
		return intent.NewExamplesClassifier(examples, cfg.Intent.MinScore)
	case "llm":
		return intent.NewLLMClassifier(completion), nil
	default:
		return nil, nil
	}
}

// loadPrompts reads the catalog file, if any, and starts watching it.
func (m *Manager) loadPrompts(path string) (*prompts.Source, error) {
	if path == "" {
		return prompts.NewSource(prompts.Default()), nil
	}

	catalog, err := prompts.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	source := prompts.NewSource(catalog)

	m.watcher, err = prompts.NewWatcher(path, source, m.logger.With("component", "prompts"))
	if err != nil {
		return nil, err
	}
	return source, nil
}

// Run watches the prompt catalog until ctx is done. It returns at once
// when no catalog file is configured.
func (m *Manager) Run(ctx context.Context) {
	if m.watcher == nil {
		return
	}
	m.watcher.Run(ctx, nil)
}

// Orchestrator returns the chat orchestrator.
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// Evaluator returns the evaluation handler.
func (m *Manager) Evaluator() *Evaluator {
	return m.evaluator
}

// Close releases every backend. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.vectorPool != nil {
		m.vectorPool.Close()
	}
	return firstErr
}
