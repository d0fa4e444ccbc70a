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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/envelope"
	"github.com/pgEdge/pgedge-rag-chat/internal/intent"
	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
	"github.com/pgEdge/pgedge-rag-chat/internal/prompts"
	"github.com/pgEdge/pgedge-rag-chat/internal/rerank"
	"github.com/pgEdge/pgedge-rag-chat/internal/retrieval"
	"github.com/pgEdge/pgedge-rag-chat/internal/store"
)

// ErrPersistence wraps a failure to record an interaction after its
// answer was delivered.
var ErrPersistence = errors.New("failed to persist interaction")

// Default values for the answer tunables.
const (
	DefaultTopN             = 5
	DefaultMaxQuestionWords = 300
	DefaultLLMTimeout       = 2 * time.Minute
)

// Envelope texts shown to clients.
const (
	descRetrievedDocuments = "Lista de Documentos Recuperados"
	descAnswerFragment     = "Fragmento de Resposta do LLM"
	descFinished           = "INTERAÇÃO FINALIZADA. Contém Id da interação"
	descInadequate         = "INTERAÇÃO INADEQUADA. Resposta gerada sem LLM."
	descServeDocument      = "SOLICITAÇÃO DE DOCUMENTO. Resposta gerada sem LLM."

	fixedAnswerPrefix = "(Resposta fixa) "
)

// Orchestrator answers chat requests. One Orchestrator serves every
// request concurrently; per-request state lives on the goroutine that
// Respond starts.
type Orchestrator struct {
	retriever       retrieval.Retriever
	scorer          rerank.Scorer
	completion      llm.CompletionProvider
	classifier      intent.Classifier
	store           store.Store
	prompts         *prompts.Source
	env             config.EnvironmentConfig
	topN            int
	maxWords        int
	rerankWorkers   int
	llmTimeout      time.Duration
	logInteractions bool
	pick            func(n int) int
	logger          *slog.Logger
}

// OrchestratorConfig contains the configuration for creating an orchestrator.
type OrchestratorConfig struct {
	Retriever  retrieval.Retriever
	Scorer     rerank.Scorer
	Completion llm.CompletionProvider
	Classifier intent.Classifier // nil treats unlabelled questions as Unknown
	Store      store.Store
	Prompts    *prompts.Source // nil uses the built-in catalog

	Environment      config.EnvironmentConfig
	TopN             int
	MaxQuestionWords int
	RerankWorkers    int
	LLMTimeout       time.Duration
	LogInteractions  bool

	// Pick draws from the inadequate-answer pools; nil is uniform random.
	Pick func(n int) int

	Logger *slog.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		retriever:       cfg.Retriever,
		scorer:          cfg.Scorer,
		completion:      cfg.Completion,
		classifier:      cfg.Classifier,
		store:           cfg.Store,
		prompts:         cfg.Prompts,
		env:             cfg.Environment,
		topN:            cfg.TopN,
		maxWords:        cfg.MaxQuestionWords,
		rerankWorkers:   cfg.RerankWorkers,
		llmTimeout:      cfg.LLMTimeout,
		logInteractions: cfg.LogInteractions,
		pick:            cfg.Pick,
		logger:          logger,
	}

	if o.classifier == nil {
		o.classifier = intent.Fixed(intent.Unknown)
	}
	if o.prompts == nil {
		o.prompts = prompts.NewSource(prompts.Default())
	}
	if o.topN <= 0 {
		o.topN = DefaultTopN
	}
	if o.maxWords <= 0 {
		o.maxWords = DefaultMaxQuestionWords
	}
	if o.llmTimeout <= 0 {
		o.llmTimeout = DefaultLLMTimeout
	}

	return o
}

// exchange is the state of one request as it moves through a strategy.
type exchange struct {
	req     ChatRequest
	intent  intent.Intent
	label   string
	catalog *prompts.Catalog
	logger  *slog.Logger
	out     chan<- envelope.Message
	ctx     context.Context
}

// emit sends msg unless the caller has gone away.
func (x *exchange) emit(msg envelope.Message) bool {
	select {
	case x.out <- msg:
		return true
	case <-x.ctx.Done():
		return false
	}
}

// Respond answers req. Envelopes arrive on the first channel, which is
// closed when the answer is complete. The error channel carries at most
// one error: the context error after cancellation, or ErrPersistence when
// a delivered answer could not be recorded.
func (o *Orchestrator) Respond(
	ctx context.Context,
	req ChatRequest,
) (<-chan envelope.Message, <-chan error) {
	msgChan := make(chan envelope.Message)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)

		x := &exchange{
			req:     req,
			catalog: o.prompts.Current(),
			out:     msgChan,
			ctx:     ctx,
		}
		x.intent, x.label = o.resolveIntent(ctx, req)
		strategy := Dispatch(x.intent)
		x.logger = o.logger.With(
			"session", req.SessionID,
			"intent", x.label,
			"strategy", strategy.String(),
		)
		x.logger.Debug("answering question", "question", req.Question)

		var err error
		switch strategy {
		case StrategyRAG:
			err = o.answerRAG(x)
		case StrategyServeDocument:
			err = o.serveDocument(x)
		case StrategyRefuseInadequate:
			err = o.refuseInadequate(x)
		default:
			err = o.smallTalk(x)
		}

		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			errChan <- err
		}
	}()

	return msgChan, errChan
}

// resolveIntent returns the intent to dispatch on and the label recorded
// with the interaction. A label sent by the client wins; otherwise the
// classifier decides.
func (o *Orchestrator) resolveIntent(ctx context.Context, req ChatRequest) (intent.Intent, string) {
	if req.Intent != nil && strings.TrimSpace(*req.Intent) != "" {
		i := intent.Parse(*req.Intent)
		if i == intent.Unknown {
			return i, *req.Intent
		}
		return i, i.String()
	}

	i, err := o.classifier.Classify(ctx, req.Question)
	if err != nil {
		o.logger.Warn("intent classification failed, using small talk",
			"error", err,
		)
		return intent.Unknown, ""
	}
	return i, i.String()
}

// answerRAG is the retrieve, re-rank, generate and persist path.
func (o *Orchestrator) answerRAG(x *exchange) error {
	if words := len(strings.Fields(x.req.Question)); words > o.maxWords {
		x.logger.Info("question rejected", "words", words, "limit", o.maxWords)
		x.emit(envelope.Error(
			fmt.Sprintf("Pergunta com mais de %d palavras", o.maxWords),
			fmt.Sprintf("Por motivos de segurança, a pergunta deve ter no máximo %d palavras. "+
				"Por favor, reformule o que você deseja perguntar, para ficar dentro desse limite.",
				o.maxWords),
		))
		return nil
	}

	// Retrieve
	if !x.emit(envelope.Status(x.catalog.Status.Consulting)) {
		return nil
	}
	start := time.Now()
	docs, err := o.retriever.Retrieve(x.ctx, x.req.Question, o.topN)
	if err != nil {
		if x.ctx.Err() != nil {
			return nil
		}
		kind := llm.ErrorKind(err)
		x.logger.Error("document retrieval failed", "error", err, "kind", kind)
		x.emit(envelope.Error(
			"Falha na Consulta ao Banco Vetorial",
			"Houve um problema na consulta de documentos. Tente mais tarde. (Tipo do erro: "+kind+")",
		))
		return nil
	}
	retrievalTime := time.Since(start)
	x.logger.Debug("documents retrieved", "count", len(docs), "duration", retrievalTime)

	// Re-rank
	if !x.emit(envelope.Status(x.catalog.Status.Reranking)) {
		return nil
	}
	start = time.Now()
	errs := rerank.Apply(x.ctx, o.scorer, x.req.Question, docs, o.rerankWorkers)
	for i, scoreErr := range errs {
		if scoreErr == nil {
			continue
		}
		x.logger.Warn("document scoring failed", "document", docs[i].ID, "error", scoreErr)
		if !x.emit(envelope.Info(
			"Falha na aplicação do BERT",
			"Houve erro na aplicação dos valores, mas o processo continuou. "+
				"Scores atribuídos com menor valor possível",
		)) {
			return nil
		}
	}
	rerank.Sort(docs)
	rerankTime := time.Since(start)
	x.logger.Debug("documents re-ranked", "duration", rerankTime)

	if !x.emit(envelope.Data(descRetrievedDocuments, envelope.TagRetrievedDocuments, docs)) {
		return nil
	}

	// Generate
	if !x.emit(envelope.Status(x.catalog.Status.Generating)) {
		return nil
	}
	passages := make([]string, len(docs))
	for i, d := range docs {
		passages[i] = d.PromptLine()
	}
	gen, ok := o.generate(x, x.catalog.RAGPrompt(x.req.Question, passages))
	if !ok {
		return nil
	}

	// Persist
	in := o.newInteraction(x)
	in.Documents = docs
	in.RetrievalDuration = &retrievalTime
	in.RerankDuration = &rerankTime
	o.withGeneration(in, x.catalog, gen)
	return o.finish(x, in)
}

// smallTalk answers with the LLM and no documents.
func (o *Orchestrator) smallTalk(x *exchange) error {
	if !x.emit(envelope.Status(x.catalog.Status.Generating)) {
		return nil
	}

	gen, ok := o.generate(x, x.catalog.SmallTalkPrompt(x.intent.String(), x.req.Question))
	if !ok {
		return nil
	}

	in := o.newInteraction(x)
	o.withGeneration(in, x.catalog, gen)
	return o.finish(x, in)
}

// serveDocument returns the configured document message.
func (o *Orchestrator) serveDocument(x *exchange) error {
	answer := x.catalog.DocumentAnswer(o.env.URLHost)
	if !x.emit(envelope.Data(descServeDocument, envelope.TagServeDocument, answer)) {
		return nil
	}

	in := o.newInteraction(x)
	in.Answer = fixedAnswerPrefix + answer
	return o.finish(x, in)
}

// refuseInadequate returns a canned refusal drawn from the pools.
func (o *Orchestrator) refuseInadequate(x *exchange) error {
	answer := x.catalog.InadequateAnswer(o.pick)
	if !x.emit(envelope.Data(descInadequate, envelope.TagAnswerFragment, answer)) {
		return nil
	}

	in := o.newInteraction(x)
	in.Answer = fixedAnswerPrefix + answer
	return o.finish(x, in)
}

// newInteraction fills the fields every strategy records.
func (o *Orchestrator) newInteraction(x *exchange) *store.Interaction {
	return &store.Interaction{
		Question:             x.req.Question,
		Device:               o.env.Device,
		LLMDevice:            o.env.LLMDevice,
		Documents:            []retrieval.Document{},
		History:              x.req.History,
		SessionID:            x.req.SessionID,
		ClientID:             x.req.ClientID,
		Intent:               x.label,
		ExecutionEnvironment: o.env.ExecutionEnvironment,
	}
}

// withGeneration records the LLM side of an interaction.
func (o *Orchestrator) withGeneration(in *store.Interaction, c *prompts.Catalog, gen *GenerationResult) {
	system := c.SystemPrompt
	client := o.completion.ProviderName()
	model := o.completion.ModelName()

	in.SystemTemplate = &system
	in.LLMClient = &client
	in.LLMModel = &model
	if gen.Fragments > 0 {
		in.TimeToFirstToken = &gen.TimeToFirstToken
	}
	in.LLMDuration = &gen.Total
	in.Answer = gen.Answer

	if gen.Metadata != nil {
		if data, err := json.Marshal(gen.Metadata); err == nil {
			in.Completion = data
		}
	}
}

// finish persists the interaction and emits its id. Nothing is recorded
// for a request whose caller has already gone.
func (o *Orchestrator) finish(x *exchange, in *store.Interaction) error {
	if x.ctx.Err() != nil {
		return nil
	}

	id, err := o.store.InsertInteraction(x.ctx, in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	o.logInteraction(x, in)
	x.emit(envelope.Data(descFinished, envelope.TagInteractionFinished, id))
	return nil
}

func (o *Orchestrator) logInteraction(x *exchange, in *store.Interaction) {
	level := slog.LevelDebug
	if o.logInteractions {
		level = slog.LevelInfo
	}
	x.logger.Log(x.ctx, level, "interaction recorded",
		"id", in.ID,
		"question", in.Question,
		"answer_chars", len(in.Answer),
		"documents", len(in.Documents),
		"retrieval", durationOrZero(in.RetrievalDuration),
		"rerank", durationOrZero(in.RerankDuration),
		"first_token", durationOrZero(in.TimeToFirstToken),
		"llm_total", durationOrZero(in.LLMDuration),
	)
}

func durationOrZero(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}

// Health probes the LLM endpoint.
func (o *Orchestrator) Health(ctx context.Context) Health {
	h := Health{API: StatusActive, LLMClient: StatusActive}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.completion.Ping(ctx); err != nil {
		o.logger.Warn("LLM endpoint unreachable", "error", err)
		h.LLMClient = StatusInactive
	}
	return h
}
