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
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
)

func TestBuildSearchQuery(t *testing.T) {
	query, args, err := buildSearchQuery(config.VectorStoreConfig{
		Table:            "normas.fragmentos",
		IDColumn:         "id",
		TextColumn:       "conteudo",
		VectorColumn:     "embedding",
		TitleColumn:      "titulo",
		SubtitleColumn:   "artigo",
		CollectionFilter: "vigente",
		Filter: &config.Filter{
			Conditions: []config.FilterCondition{{Column: "colecao", Operator: "=", Value: "rh"}},
		},
	})
	if err != nil {
		t.Fatalf("buildSearchQuery failed: %v", err)
	}

	for _, want := range []string{
		`"id"::text AS id`,
		`1 - ("embedding" <=> $1::vector) AS similarity`,
		`COALESCE("titulo"::text, '') AS title`,
		`COALESCE("artigo"::text, '') AS subtitle`,
		`'' AS author`,
		`"conteudo" AS content`,
		`FROM "normas"."fragmentos" WHERE (vigente) AND ("colecao" = $3)`,
		`ORDER BY "embedding" <=> $1::vector`,
		`LIMIT $2`,
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
	if len(args) != 1 || args[0] != "rh" {
		t.Errorf("unexpected filter args %v", args)
	}
}

func TestNewSearcher_InvalidFilter(t *testing.T) {
	_, err := NewSearcher(nil, config.VectorStoreConfig{
		Table: "t", TextColumn: "c", VectorColumn: "v",
		Filter: &config.Filter{
			Conditions: []config.FilterCondition{{Column: "a", Operator: "~", Value: "x"}},
		},
	})
	if err == nil {
		t.Error("expected error for unsupported operator")
	}
}

type mockQuerier struct {
	QueryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.QueryFunc(ctx, sql, args...)
}

func TestSearcher_PassesVectorAndLimit(t *testing.T) {
	queryErr := errors.New("connection refused")
	db := &mockQuerier{
		QueryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			if len(args) != 3 {
				t.Fatalf("expected 3 args, got %d", len(args))
			}
			vec, ok := args[0].(pgvector.Vector)
			if !ok || len(vec.Slice()) != 2 {
				t.Errorf("expected pgvector.Vector of 2 dims, got %#v", args[0])
			}
			if args[1] != 7 {
				t.Errorf("expected limit 7, got %v", args[1])
			}
			return nil, queryErr
		},
	}

	s, err := NewSearcher(db, config.VectorStoreConfig{
		Table: "t", TextColumn: "c", VectorColumn: "v",
		Filter: &config.Filter{
			Conditions: []config.FilterCondition{{Column: "a", Operator: "=", Value: 1}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Search(context.Background(), []float32{0.1, 0.2}, 7)
	if !errors.Is(err, queryErr) {
		t.Errorf("expected wrapped query error, got %v", err)
	}
}
