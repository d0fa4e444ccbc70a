//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package postgres stores interactions in a PostgreSQL database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgEdge/pgedge-rag-chat/internal/store"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	db DB
}

var _ store.Store = (*Store)(nil)

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS Interacao (
		id UUID PRIMARY KEY,
		criado_em TIMESTAMPTZ NOT NULL DEFAULT now(),
		pergunta TEXT NOT NULL,
		tipo_dispositivo_aplicacao TEXT,
		tipo_dispositivo_llm TEXT,
		tempo_recuperacao_documentos DOUBLE PRECISION,
		tempo_estimativa_bert DOUBLE PRECISION,
		template_system_llm TEXT,
		historico_llm JSONB NOT NULL,
		cliente_llm TEXT,
		modelo_llm TEXT,
		tempo_inicio_stream_resposta DOUBLE PRECISION,
		tempo_total_llm DOUBLE PRECISION,
		resposta TEXT NOT NULL,
		resposta_completa_llm JSONB,
		id_sessao TEXT,
		id_cliente TEXT,
		intencao TEXT,
		ambiente_execucao TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interacao_sessao ON Interacao(id_sessao, criado_em)`,
	`CREATE TABLE IF NOT EXISTS Documento_em_Interacao (
		id UUID PRIMARY KEY,
		id_interacao UUID NOT NULL REFERENCES Interacao(id),
		posicao INTEGER NOT NULL,
		id_documento TEXT NOT NULL,
		score_distancia DOUBLE PRECISION,
		titulo TEXT,
		subtitulo TEXT,
		autor TEXT,
		fonte TEXT,
		conteudo TEXT,
		score_bert_estimado DOUBLE PRECISION,
		score_bert_logits DOUBLE PRECISION,
		score_ponderado DOUBLE PRECISION,
		resposta_bert TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documento_interacao ON Documento_em_Interacao(id_interacao, posicao)`,
	`CREATE TABLE IF NOT EXISTS Avaliacao_Interacao (
		id UUID PRIMARY KEY,
		id_interacao UUID NOT NULL REFERENCES Interacao(id),
		avaliacao JSONB,
		comentario TEXT,
		atualizado_em TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_avaliacao_interacao ON Avaliacao_Interacao(id_interacao)`,
}

// New bootstraps the schema on db and returns a store that owns it.
func New(ctx context.Context, db DB) (*Store, error) {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// InsertInteraction implements store.Store.
func (s *Store) InsertInteraction(ctx context.Context, in *store.Interaction) (string, error) {
	history, err := store.EncodeHistory(in.History)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO Interacao (id, criado_em, pergunta, tipo_dispositivo_aplicacao,
			tipo_dispositivo_llm, tempo_recuperacao_documentos, tempo_estimativa_bert,
			template_system_llm, historico_llm, cliente_llm, modelo_llm,
			tempo_inicio_stream_resposta, tempo_total_llm, resposta, resposta_completa_llm,
			id_sessao, id_cliente, intencao, ambiente_execucao)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text::jsonb, $10, $11, $12, $13, $14,
			$15::text::jsonb, $16, $17, $18, $19)`,
		id, created, in.Question, in.Device,
		in.LLMDevice, store.Seconds(in.RetrievalDuration), store.Seconds(in.RerankDuration),
		in.SystemTemplate, history, in.LLMClient, in.LLMModel,
		store.Seconds(in.TimeToFirstToken), store.Seconds(in.LLMDuration), in.Answer,
		rawText(in.Completion),
		in.SessionID, in.ClientID, in.Intent, in.ExecutionEnvironment)
	if err != nil {
		return "", fmt.Errorf("failed to insert interaction: %w", err)
	}

	rows := store.DocumentRows(in.Documents)
	if len(rows) > 0 {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(
				`INSERT INTO Documento_em_Interacao (id, id_interacao, posicao, id_documento,
					score_distancia, titulo, subtitulo, autor, fonte, conteudo,
					score_bert_estimado, score_bert_logits, score_ponderado, resposta_bert)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
				uuid.NewString(), id, row.Position, row.DocumentID,
				row.Similarity, row.Title, row.Subtitle, row.Author, row.Source, row.Content,
				row.Estimated, row.LogitSum, row.Weighted, row.ExtractedQA)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return "", fmt.Errorf("failed to insert interaction documents: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit interaction: %w", err)
	}

	in.ID = id
	in.CreatedAt = created
	return id, nil
}

// FindEvaluations implements store.Store.
func (s *Store) FindEvaluations(ctx context.Context, interactionID string) ([]store.Evaluation, error) {
	if _, err := uuid.Parse(interactionID); err != nil {
		// Not a valid key, so nothing can match
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id::text, id_interacao::text, avaliacao::text, comentario, atualizado_em
		FROM Avaliacao_Interacao WHERE id_interacao = $1`, interactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []store.Evaluation
	for rows.Next() {
		var ev store.Evaluation
		var rating, comment *string
		if err := rows.Scan(&ev.ID, &ev.InteractionID, &rating, &comment, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		if rating != nil {
			ev.Rating = []byte(*rating)
		}
		if comment != nil {
			ev.Comment = *comment
		}
		evaluations = append(evaluations, ev)
	}
	return evaluations, rows.Err()
}

// InsertEvaluation implements store.Store.
func (s *Store) InsertEvaluation(ctx context.Context, ev *store.Evaluation) (int64, error) {
	if _, err := uuid.Parse(ev.InteractionID); err != nil {
		return 0, fmt.Errorf("%w: %s", store.ErrInteractionNotFound, ev.InteractionID)
	}

	id := uuid.NewString()
	tag, err := s.db.Exec(ctx,
		`INSERT INTO Avaliacao_Interacao (id, id_interacao, avaliacao, comentario, atualizado_em)
		VALUES ($1, $2, $3::text::jsonb, $4, $5)`,
		id, ev.InteractionID, rawText(ev.Rating), ev.Comment, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case foreignKeyViolation:
				return 0, fmt.Errorf("%w: %s", store.ErrInteractionNotFound, ev.InteractionID)
			case uniqueViolation:
				return 0, fmt.Errorf("%w: %s", store.ErrEvaluationExists, ev.InteractionID)
			}
		}
		return 0, fmt.Errorf("failed to insert evaluation: %w", err)
	}
	ev.ID = id
	return tag.RowsAffected(), nil
}

// UpdateEvaluation implements store.Store.
func (s *Store) UpdateEvaluation(ctx context.Context, ev *store.Evaluation) (int64, error) {
	if _, err := uuid.Parse(ev.InteractionID); err != nil {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE Avaliacao_Interacao SET avaliacao = $1::text::jsonb, comentario = $2, atualizado_em = $3
		WHERE id_interacao = $4`,
		rawText(ev.Rating), ev.Comment, time.Now().UTC(), ev.InteractionID)
	if err != nil {
		return 0, fmt.Errorf("failed to update evaluation: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rawText(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}
