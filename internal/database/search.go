//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
)

// parseTableIdentifier splits a table name into schema and table parts.
// Supports formats: "table", "schema.table"
func parseTableIdentifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// SearchResult is one fragment returned by a similarity query.
type SearchResult struct {
	ID         string
	Similarity float64 // 1 - cosine distance
	Title      string
	Subtitle   string
	Author     string
	Source     string
	Content    string
}

// Querier is the part of a pool the search needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Searcher runs the similarity query against one configured table. The
// SQL is built once; only the vector and limit vary per call.
type Searcher struct {
	db         Querier
	query      string
	filterArgs []any
}

// NewSearcher prepares the similarity query for cfg.
func NewSearcher(db Querier, cfg config.VectorStoreConfig) (*Searcher, error) {
	query, args, err := buildSearchQuery(cfg)
	if err != nil {
		return nil, err
	}
	return &Searcher{db: db, query: query, filterArgs: args}, nil
}

// optionalColumn selects a metadata column as text, or an empty string
// when the table has no such column.
func optionalColumn(name string) string {
	if name == "" {
		return "''"
	}
	return fmt.Sprintf("COALESCE(%s::text, '')", pgx.Identifier{name}.Sanitize())
}

func buildSearchQuery(cfg config.VectorStoreConfig) (string, []any, error) {
	// $1 is the vector and $2 the limit; filter parameters follow
	filterClause, filterArgs, err := buildFilterClause(cfg.CollectionFilter, cfg.Filter, 3)
	if err != nil {
		return "", nil, fmt.Errorf("invalid vector_store filter: %w", err)
	}

	idColumn := cfg.IDColumn
	if idColumn == "" {
		idColumn = "id"
	}
	vector := pgx.Identifier{cfg.VectorColumn}.Sanitize()

	// The <=> operator returns cosine distance, so we subtract from 1 for similarity
	query := fmt.Sprintf(`
		SELECT
			%s::text AS id,
			1 - (%s <=> $1::vector) AS similarity,
			%s AS title,
			%s AS subtitle,
			%s AS author,
			%s AS source,
			%s AS content
		FROM %s%s
		ORDER BY %s <=> $1::vector
		LIMIT $2`,
		pgx.Identifier{idColumn}.Sanitize(),
		vector,
		optionalColumn(cfg.TitleColumn),
		optionalColumn(cfg.SubtitleColumn),
		optionalColumn(cfg.AuthorColumn),
		optionalColumn(cfg.SourceColumn),
		pgx.Identifier{cfg.TextColumn}.Sanitize(),
		parseTableIdentifier(cfg.Table).Sanitize(),
		filterClause,
		vector,
	)

	return query, filterArgs, nil
}

// Search returns the topN fragments closest to embedding, most similar
// first.
func (s *Searcher) Search(ctx context.Context, embedding []float32, topN int) ([]SearchResult, error) {
	args := append([]any{pgvector.NewVector(embedding), topN}, s.filterArgs...)

	rows, err := s.db.Query(ctx, s.query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.ID, &r.Similarity,
			&r.Title, &r.Subtitle, &r.Author, &r.Source,
			&r.Content,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}
