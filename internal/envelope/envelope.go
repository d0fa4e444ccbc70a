//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package envelope defines the tagged messages streamed to chat clients.
//
// Each message is written as one line of JSON. A client reads lines until
// the stream closes; a Data message tagged TagInteractionFinished marks the
// logical end of a successful answer.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind is the wire discriminator of a message.
type Kind string

// Message kinds.
const (
	KindInfo    Kind = "info"
	KindError   Kind = "erro"
	KindControl Kind = "controle"
	KindData    Kind = "dados"
)

// Data tags understood by the web client.
const (
	TagStatus              = "status"
	TagRetrievedDocuments  = "lista-docs-recuperados"
	TagAnswerFragment      = "frag-resposta-llm"
	TagInteractionFinished = "interacao-finalizada"
	TagServeDocument       = "servir-documento"
	TagEvaluationStored    = "persistencia-avaliacao"
)

// Payload is the tagged body carried by Status and Data messages.
type Payload struct {
	Tag     string `json:"tag"`
	Content any    `json:"conteudo"`
}

// Message is one streamed envelope. Description is a short diagnostic for
// developers; UserMessage, when set, is safe to show to end users.
type Message struct {
	Kind        Kind     `json:"tipo"`
	Description string   `json:"descricao"`
	UserMessage *string  `json:"mensagem"`
	Payload     *Payload `json:"dados,omitempty"`
}

const statusDescription = "Informação de Status"

// Status reports which phase the server is entering.
func Status(text string) Message {
	return Message{
		Kind:        KindControl,
		Description: statusDescription,
		Payload:     &Payload{Tag: TagStatus, Content: text},
	}
}

// Data carries a tagged result.
func Data(description, tag string, content any) Message {
	return Message{
		Kind:        KindData,
		Description: description,
		Payload:     &Payload{Tag: tag, Content: content},
	}
}

// Error reports a failure that ends the stream.
func Error(description, userMessage string) Message {
	return Message{
		Kind:        KindError,
		Description: description,
		UserMessage: &userMessage,
	}
}

// Info reports a recoverable problem; the stream continues.
func Info(description, userMessage string) Message {
	return Message{
		Kind:        KindInfo,
		Description: description,
		UserMessage: &userMessage,
	}
}

// Tag returns the payload tag, or "" for messages without a payload.
func (m Message) Tag() string {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Tag
}

// Marshal encodes the message as a single JSON line, including the
// trailing newline. Non-ASCII text is written as-is.
func (m Message) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Kind, err)
	}
	return buf.Bytes(), nil
}

// Write encodes the message as one line on w.
func (m Message) Write(w io.Writer) error {
	line, err := m.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}
