//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package bm25

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits Portuguese text into index terms.
//
// Text is lower-cased and stripped of diacritics so that "não", "nao" and
// "NÃO" all produce the same term.
type Tokenizer struct {
	stopWords map[string]bool
	fold      bool
}

// DefaultStopWords contains common Portuguese stop words, already folded.
var DefaultStopWords = map[string]bool{
	"a": true, "ao": true, "aos": true, "as": true, "com": true,
	"como": true, "da": true, "das": true, "de": true, "do": true,
	"dos": true, "e": true, "ela": true, "ele": true, "em": true,
	"entre": true, "era": true, "essa": true, "esse": true, "esta": true,
	"este": true, "eu": true, "foi": true, "ha": true, "isso": true,
	"isto": true, "ja": true, "lhe": true, "mais": true, "mas": true,
	"me": true, "mesmo": true, "meu": true, "minha": true, "muito": true,
	"na": true, "nas": true, "nem": true, "no": true, "nos": true,
	"o": true, "os": true, "ou": true, "para": true, "pela": true,
	"pelas": true, "pelo": true, "pelos": true, "por": true, "qual": true,
	"quando": true, "que": true, "quem": true, "se": true, "sem": true,
	"ser": true, "seu": true, "sua": true, "sao": true, "tambem": true,
	"te": true, "tem": true, "um": true, "uma": true, "umas": true,
	"uns": true, "voce": true, "voces": true, "vos": true,
}

// NewTokenizer creates a tokenizer with the Portuguese stop words and
// diacritic folding.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stopWords: DefaultStopWords,
		fold:      true,
	}
}

// Fold lower-cases text and removes combining marks.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// Tokenize splits text into tokens, applying normalization.
func (t *Tokenizer) Tokenize(text string) []string {
	if t.fold {
		text = Fold(text)
	}

	var tokens []string
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if t.isValidToken(token) {
			tokens = append(tokens, token)
		}
	}

	return tokens
}

// isValidToken drops single characters and stop words.
func (t *Tokenizer) isValidToken(token string) bool {
	if len([]rune(token)) < 2 {
		return false
	}
	return !t.stopWords[token]
}

// TokenFrequencies returns a map of token to frequency count.
func (t *Tokenizer) TokenFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, token := range t.Tokenize(text) {
		freqs[token]++
	}
	return freqs
}
