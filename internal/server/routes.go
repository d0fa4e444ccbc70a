//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /chat/openapi.json", s.handleOpenAPI)
	s.mux.HandleFunc("GET /chat/health", s.handleHealth)
	s.mux.HandleFunc("POST /chat/enviar-pergunta/{$}", s.handleAsk)
	s.mux.HandleFunc("POST /chat/avaliar-interacao/{$}", s.handleEvaluate)
	s.mux.HandleFunc("GET /chat/ws", s.handleWebSocket)
}
