//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package intent defines the closed set of question intents and the
// classifiers that assign one when the client did not.
package intent

import (
	"context"
	"strings"
)

// Intent is a coarse classification of what kind of answer a question
// needs.
type Intent int

const (
	// Unknown is any label outside the known set.
	Unknown Intent = iota
	// Consulta is a question about the regulations.
	Consulta
	// Doc asks for the regulation documents themselves.
	Doc
	// Ping is a greeting or conversation opener.
	Ping
	// Out is a question outside the regulations' scope.
	Out
	// Inadequate is an offensive or otherwise inappropriate message.
	Inadequate
)

var labels = map[Intent]string{
	Consulta:   "consulta",
	Doc:        "doc",
	Ping:       "ping",
	Out:        "out",
	Inadequate: "inadeq",
}

// Labels returns the wire labels of the known intents.
func Labels() []string {
	return []string{"consulta", "doc", "ping", "out", "inadeq"}
}

// Parse maps a wire label to an Intent. Matching ignores case and
// surrounding space; anything else is Unknown.
func Parse(label string) Intent {
	label = strings.ToLower(strings.TrimSpace(label))
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return Unknown
}

// String returns the wire label, or "" for Unknown.
func (i Intent) String() string {
	return labels[i]
}

// Classifier assigns an intent to a question.
type Classifier interface {
	Classify(ctx context.Context, question string) (Intent, error)
}

// Fixed always answers with the same intent. It stands in when no
// classifier is configured.
type Fixed Intent

// Classify implements Classifier.
func (f Fixed) Classify(context.Context, string) (Intent, error) {
	return Intent(f), nil
}
