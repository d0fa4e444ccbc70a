//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package sqlite stores interactions in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/pgEdge/pgedge-rag-chat/internal/store"
)

// Store implements store.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database at dsn and bootstraps the
// schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to an in-memory database sees its own empty
	// database, so keep exactly one.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS Interacao (
			id TEXT PRIMARY KEY,
			criado_em DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pergunta TEXT NOT NULL,
			tipo_dispositivo_aplicacao TEXT,
			tipo_dispositivo_llm TEXT,
			tempo_recuperacao_documentos REAL,
			tempo_estimativa_bert REAL,
			template_system_llm TEXT,
			historico_llm TEXT NOT NULL,
			cliente_llm TEXT,
			modelo_llm TEXT,
			tempo_inicio_stream_resposta REAL,
			tempo_total_llm REAL,
			resposta TEXT NOT NULL,
			resposta_completa_llm TEXT,
			id_sessao TEXT,
			id_cliente TEXT,
			intencao TEXT,
			ambiente_execucao TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interacao_sessao ON Interacao(id_sessao, criado_em)`,
		`CREATE TABLE IF NOT EXISTS Documento_em_Interacao (
			id TEXT PRIMARY KEY,
			id_interacao TEXT NOT NULL,
			posicao INTEGER NOT NULL,
			id_documento TEXT NOT NULL,
			score_distancia REAL,
			titulo TEXT,
			subtitulo TEXT,
			autor TEXT,
			fonte TEXT,
			conteudo TEXT,
			score_bert_estimado REAL,
			score_bert_logits REAL,
			score_ponderado REAL,
			resposta_bert TEXT,
			FOREIGN KEY (id_interacao) REFERENCES Interacao(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documento_interacao ON Documento_em_Interacao(id_interacao, posicao)`,
		`CREATE TABLE IF NOT EXISTS Avaliacao_Interacao (
			id TEXT PRIMARY KEY,
			id_interacao TEXT NOT NULL,
			avaliacao TEXT,
			comentario TEXT,
			atualizado_em DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (id_interacao) REFERENCES Interacao(id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_avaliacao_interacao ON Avaliacao_Interacao(id_interacao)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO Interacao (id, criado_em, pergunta, tipo_dispositivo_aplicacao,
			tipo_dispositivo_llm, tempo_recuperacao_documentos, tempo_estimativa_bert,
			template_system_llm, historico_llm, cliente_llm, modelo_llm,
			tempo_inicio_stream_resposta, tempo_total_llm, resposta, resposta_completa_llm,
			id_sessao, id_cliente, intencao, ambiente_execucao)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, created, in.Question, in.Device,
		in.LLMDevice, store.Seconds(in.RetrievalDuration), store.Seconds(in.RerankDuration),
		in.SystemTemplate, history, in.LLMClient, in.LLMModel,
		store.Seconds(in.TimeToFirstToken), store.Seconds(in.LLMDuration), in.Answer,
		nullStringBytes(in.Completion),
		in.SessionID, in.ClientID, in.Intent, in.ExecutionEnvironment)
	if err != nil {
		return "", fmt.Errorf("failed to insert interaction: %w", err)
	}

	for _, row := range store.DocumentRows(in.Documents) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO Documento_em_Interacao (id, id_interacao, posicao, id_documento,
				score_distancia, titulo, subtitulo, autor, fonte, conteudo,
				score_bert_estimado, score_bert_logits, score_ponderado, resposta_bert)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), id, row.Position, row.DocumentID,
			row.Similarity, row.Title, row.Subtitle, row.Author, row.Source, row.Content,
			row.Estimated, row.LogitSum, row.Weighted, row.ExtractedQA)
		if err != nil {
			return "", fmt.Errorf("failed to insert document %d of interaction: %w", row.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit interaction: %w", err)
	}

	in.ID = id
	in.CreatedAt = created
	return id, nil
}

// FindEvaluations implements store.Store.
func (s *Store) FindEvaluations(ctx context.Context, interactionID string) ([]store.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, id_interacao, avaliacao, comentario, atualizado_em
		FROM Avaliacao_Interacao WHERE id_interacao = ?`, interactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []store.Evaluation
	for rows.Next() {
		var ev store.Evaluation
		var rating, comment sql.NullString
		if err := rows.Scan(&ev.ID, &ev.InteractionID, &rating, &comment, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		if rating.Valid {
			ev.Rating = []byte(rating.String)
		}
		ev.Comment = comment.String
		evaluations = append(evaluations, ev)
	}
	return evaluations, rows.Err()
}

// InsertEvaluation implements store.Store.
func (s *Store) InsertEvaluation(ctx context.Context, ev *store.Evaluation) (int64, error) {
	id := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO Avaliacao_Interacao (id, id_interacao, avaliacao, comentario, atualizado_em)
		VALUES (?, ?, ?, ?, ?)`,
		id, ev.InteractionID, nullStringBytes(ev.Rating), ev.Comment, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: %s", store.ErrInteractionNotFound, ev.InteractionID)
		}
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", store.ErrEvaluationExists, ev.InteractionID)
		}
		return 0, fmt.Errorf("failed to insert evaluation: %w", err)
	}
	ev.ID = id
	return res.RowsAffected()
}

// UpdateEvaluation implements store.Store.
func (s *Store) UpdateEvaluation(ctx context.Context, ev *store.Evaluation) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE Avaliacao_Interacao SET avaliacao = ?, comentario = ?, atualizado_em = ?
		WHERE id_interacao = ?`,
		nullStringBytes(ev.Rating), ev.Comment, time.Now().UTC(), ev.InteractionID)
	if err != nil {
		return 0, fmt.Errorf("failed to update evaluation: %w", err)
	}
	return res.RowsAffected()
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// withForeignKeys turns on foreign key enforcement for every pooled
// connection, not just the one that runs the PRAGMA.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
