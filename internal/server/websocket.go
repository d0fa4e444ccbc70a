//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pgEdge/pgedge-rag-chat/internal/envelope"
	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
)

const wsWriteWait = 10 * time.Second

// handleWebSocket handles the GET /chat/ws endpoint. Each text frame from
// the client is a chat request; every envelope of its answer is sent back
// as one text frame. Requests on one socket are answered in order, and
// closing the socket cancels the answer in flight.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxBodyBytes)
	// The socket outlives the server's per-request read deadline
	_ = conn.SetReadDeadline(time.Time{})

	logger := s.logger.With("request_id", requestID(r.Context()), "transport", "websocket")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requests := make(chan []byte)
	go func() {
		defer cancel()
		defer close(requests)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("websocket closed", "error", err)
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			select {
			case requests <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for data := range requests {
		var req pipeline.ChatRequest
		if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Question) == "" {
			msg := envelope.Error("Requisição inválida",
				"Não foi possível ler a pergunta enviada. Tente novamente.")
			if !s.sendFrame(conn, msg) {
				return
			}
			continue
		}
		if !s.streamFrames(ctx, conn, req, logger.With("session", req.SessionID)) {
			return
		}
	}
}

// streamFrames relays one answer over the socket. It returns false when
// the socket can no longer be used.
func (s *Server) streamFrames(
	ctx context.Context,
	conn *websocket.Conn,
	req pipeline.ChatRequest,
	logger *slog.Logger,
) bool {
	msgChan, errChan := s.chat.Respond(ctx, req)

	open := true
	for msg := range msgChan {
		if open && !s.sendFrame(conn, msg) {
			open = false
		}
	}

	err := <-errChan
	switch {
	case err == nil:
	case ctx.Err() != nil:
		logger.Debug("websocket closed during streaming")
		return false
	case errors.Is(err, pipeline.ErrPersistence):
		logger.Error("interaction not recorded, closing websocket", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "interaction not recorded"),
			time.Now().Add(wsWriteWait))
		return false
	default:
		logger.Error("answer failed", "error", err)
	}
	return open
}

// sendFrame writes msg as one text frame.
func (s *Server) sendFrame(conn *websocket.Conn, msg envelope.Message) bool {
	line, err := msg.Marshal()
	if err != nil {
		s.logger.Error("failed to encode envelope", "error", err)
		return false
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(line, []byte("\n"))); err != nil {
		s.logger.Debug("failed to write websocket frame", "error", err)
		return false
	}
	return true
}

// checkOrigin accepts same-origin upgrades, clients that send no Origin,
// and origins allowed by the CORS settings.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.getAllowedOrigin(origin) != "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
