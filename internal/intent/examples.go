//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package intent

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pgEdge/pgedge-rag-chat/internal/bm25"
)

// neighbours is how many of the closest examples vote on a label.
const neighbours = 5

// Example is one labelled question.
type Example struct {
	Text  string
	Label Intent
}

// ExamplesClassifier labels a question after the labelled examples that
// share the most vocabulary with it. Each of the closest examples votes
// for its label with its BM25 score.
type ExamplesClassifier struct {
	index    *bm25.Index
	minScore float64
}

// NewExamplesClassifier indexes examples. Questions whose best example
// scores below minScore are Unknown.
func NewExamplesClassifier(examples []Example, minScore float64) (*ExamplesClassifier, error) {
	if len(examples) == 0 {
		return nil, errors.New("no intent examples")
	}

	idx := bm25.NewIndex()
	for i, ex := range examples {
		idx.AddLabeled(strconv.Itoa(i), ex.Label.String(), ex.Text)
	}

	return &ExamplesClassifier{index: idx, minScore: minScore}, nil
}

// Classify implements Classifier.
func (c *ExamplesClassifier) Classify(_ context.Context, question string) (Intent, error) {
	results := c.index.Search(question, neighbours)
	if len(results) == 0 || results[0].Score < c.minScore {
		return Unknown, nil
	}

	votes := make(map[string]float64)
	best := ""
	for _, r := range results {
		votes[r.Label] += r.Score
		// Ties go to the label of the closer example
		if best == "" || votes[r.Label] > votes[best] {
			best = r.Label
		}
	}
	return Parse(best), nil
}

// LoadExamples reads a CSV file with a header row containing "texto" and
// "label" (or "intencao") columns. Rows with an unknown label are
// skipped.
func LoadExamples(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open intent examples: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadExamples(f)
}

// ReadExamples parses labelled examples from CSV.
func ReadExamples(r io.Reader) ([]Example, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read intent examples header: %w", err)
	}

	textCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "texto", "text":
			textCol = i
		case "label", "intencao":
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return nil, errors.New("intent examples need 'texto' and 'label' columns")
	}

	var examples []Example
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("intent examples line %d: %w", line, err)
		}
		if len(record) <= textCol || len(record) <= labelCol {
			continue
		}

		label := Parse(record[labelCol])
		if label == Unknown {
			continue
		}
		examples = append(examples, Example{Text: record[textCol], Label: label})
	}

	return examples, nil
}
