//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
)

// maxBodyBytes bounds a request body; a question is limited to a few
// hundred words but the history can be long.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /chat/health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.chat.Health(r.Context()))
}

// handleAsk handles the POST /chat/enviar-pergunta/ endpoint. The answer
// is streamed as newline-delimited JSON envelopes, flushed one by one.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "pergunta is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "STREAMING_ERROR",
			"streaming not supported")
		return
	}

	// The stream lasts as long as the LLM takes
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := s.logger.With("request_id", requestID(r.Context()), "session", req.SessionID)
	msgChan, errChan := s.chat.Respond(r.Context(), req)

	writing := true
	for msg := range msgChan {
		if !writing {
			continue
		}
		if err := msg.Write(w); err != nil {
			logger.Debug("failed to write envelope", "error", err)
			writing = false
			continue
		}
		flusher.Flush()
	}

	err := <-errChan
	switch {
	case err == nil:
	case r.Context().Err() != nil:
		logger.Debug("client disconnected during streaming")
	case errors.Is(err, pipeline.ErrPersistence):
		logger.Error("interaction not recorded, aborting response", "error", err)
		panic(http.ErrAbortHandler)
	default:
		logger.Error("answer failed", "error", err)
	}
}

// handleEvaluate handles the POST /chat/avaliar-interacao/ endpoint.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.EvaluationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.InteractionID == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "uuid_interacao is required")
		return
	}

	result := s.evaluations.Evaluate(r.Context(), req)
	s.respondJSON(w, http.StatusOK, result.Envelope())
}

// decodeBody parses a JSON request body into v, responding 400 on
// failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return false
	}
	// Reading to EOF lets net/http notice a client that goes away
	_, _ = io.Copy(io.Discard, r.Body)
	return true
}

// respondJSON sends a JSON response with RFC 8631 Link header for API discovery.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	// RFC 8631: Link header for API documentation discovery
	w.Header().Set("Link", `</chat/openapi.json>; rel="service-desc"`)
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
