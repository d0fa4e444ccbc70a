//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import "github.com/pgEdge/pgedge-rag-chat/internal/intent"

// Strategy is a way of producing an answer.
type Strategy int

const (
	// StrategySmallTalk answers with the LLM and no documents. It is the
	// fallback for unknown intents.
	StrategySmallTalk Strategy = iota
	// StrategyRAG retrieves, re-ranks and answers from the regulations.
	StrategyRAG
	// StrategyServeDocument returns the fixed document message.
	StrategyServeDocument
	// StrategyRefuseInadequate returns a canned refusal.
	StrategyRefuseInadequate
)

func (s Strategy) String() string {
	switch s {
	case StrategyRAG:
		return "rag"
	case StrategyServeDocument:
		return "serve_document"
	case StrategyRefuseInadequate:
		return "refuse_inadequate"
	default:
		return "small_talk"
	}
}

// Dispatch picks the strategy for an intent.
func Dispatch(i intent.Intent) Strategy {
	switch i {
	case intent.Consulta:
		return StrategyRAG
	case intent.Doc:
		return StrategyServeDocument
	case intent.Inadequate:
		return StrategyRefuseInadequate
	case intent.Ping, intent.Out:
		return StrategySmallTalk
	default:
		return StrategySmallTalk
	}
}
