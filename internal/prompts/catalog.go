//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package prompts holds the user-facing texts of the chat service: the
// LLM instructions and templates, the status messages shown while a
// question is processed, and the canned answers that bypass the LLM.
package prompts

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template placeholders.
const (
	PlaceholderDocuments = "{docs}"
	PlaceholderQuestion  = "{question}"

	// PlaceholderURLHost is replaced by the public base URL in the
	// document message.
	PlaceholderURLHost = "TAG_INSERCAO_URL_HOST"
)

// Catalog is one immutable set of texts. Values are swapped wholesale on
// reload, never mutated.
type Catalog struct {
	Status          StatusTexts     `yaml:"status"`
	SystemPrompt    string          `yaml:"system_prompt"`
	RAGTemplate     string          `yaml:"rag_template"`
	SmallTalk       SmallTalk       `yaml:"small_talk"`
	Inadequate      InadequatePools `yaml:"inadequate"`
	DocumentMessage string          `yaml:"document_message"`
}

// StatusTexts are shown to the user before each phase of a RAG answer.
type StatusTexts struct {
	Consulting string `yaml:"consulta"`
	Reranking  string `yaml:"reranking"`
	Generating string `yaml:"geracao_resposta"`
}

// SmallTalk holds the user prompt sent to the LLM for conversational
// intents. Each template may contain {question}.
type SmallTalk struct {
	Ping     string `yaml:"ping"`
	Out      string `yaml:"out"`
	Fallback string `yaml:"fallback"`
}

// InadequatePools are the independent lists one sentence is drawn from
// when refusing an inadequate question.
type InadequatePools struct {
	Reaction    []string `yaml:"reacao"`
	Warning     []string `yaml:"advertencia"`
	Information []string `yaml:"informacao"`
	Redirect    []string `yaml:"direcionamento"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Status: StatusTexts{
			Consulting: "Consultando os normativos...",
			Reranking:  "Avaliando a relevância dos trechos encontrados...",
			Generating: "Elaborando a resposta...",
		},
		SystemPrompt: "Você é um assistente que responde perguntas sobre os normativos " +
			"internos da organização. Responda em português, de forma objetiva, " +
			"usando apenas as informações dos DOCUMENTOS fornecidos. Cite o título " +
			"do documento que fundamenta a resposta. Se os documentos não contiverem " +
			"a resposta, diga que não encontrou a informação nos normativos.",
		RAGTemplate: "DOCUMENTOS:\n" + PlaceholderDocuments + "\nPERGUNTA: " + PlaceholderQuestion,
		SmallTalk: SmallTalk{
			Ping: "O usuário iniciou uma conversa ou cumprimentou: \"" + PlaceholderQuestion +
				"\". Responda cordialmente em uma ou duas frases e informe que você " +
				"pode tirar dúvidas sobre os normativos internos.",
			Out: "O usuário perguntou algo fora do escopo dos normativos internos: \"" +
				PlaceholderQuestion + "\". Explique educadamente que você só responde " +
				"perguntas sobre os normativos internos da organização.",
			Fallback: "Responda de forma breve e cordial à mensagem do usuário: \"" +
				PlaceholderQuestion + "\". Lembre que seu objetivo é ajudar com dúvidas " +
				"sobre os normativos internos.",
		},
		Inadequate: InadequatePools{
			Reaction: []string{
				"Poxa!",
				"Hmm...",
				"Opa!",
			},
			Warning: []string{
				"Esse tipo de mensagem não é adequado para este canal.",
				"Não posso responder a mensagens com esse conteúdo.",
			},
			Information: []string{
				"Todas as interações são registradas para fins de auditoria.",
				"Este assistente é uma ferramenta institucional de uso profissional.",
			},
			Redirect: []string{
				"Que tal fazer uma pergunta sobre os normativos internos?",
				"Posso ajudar com alguma dúvida sobre os normativos?",
			},
		},
		DocumentMessage: "Os normativos completos estão disponíveis em " +
			PlaceholderURLHost + "/documentos.",
	}
}

// Parse reads a YAML catalog. Fields absent from the file keep their
// built-in values.
func Parse(data []byte) (*Catalog, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return Parse(data)
}

// Validate checks that every template can be rendered.
func (c *Catalog) Validate() error {
	var problems []string

	if !strings.Contains(c.RAGTemplate, PlaceholderDocuments) {
		problems = append(problems, "rag_template must contain "+PlaceholderDocuments)
	}
	if !strings.Contains(c.RAGTemplate, PlaceholderQuestion) {
		problems = append(problems, "rag_template must contain "+PlaceholderQuestion)
	}

	pools := []struct {
		name  string
		items []string
	}{
		{"inadequate.reacao", c.Inadequate.Reaction},
		{"inadequate.advertencia", c.Inadequate.Warning},
		{"inadequate.informacao", c.Inadequate.Information},
		{"inadequate.direcionamento", c.Inadequate.Redirect},
	}
	for _, p := range pools {
		if len(p.items) == 0 {
			problems = append(problems, p.name+" must not be empty")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid prompts: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RAGPrompt renders the user prompt for a question and its supporting
// passages, one per line.
func (c *Catalog) RAGPrompt(question string, passages []string) string {
	return strings.NewReplacer(
		PlaceholderDocuments, strings.Join(passages, "\n"),
		PlaceholderQuestion, question,
	).Replace(c.RAGTemplate)
}

// SmallTalkPrompt renders the prompt for a conversational intent label.
// Labels without a dedicated template use the fallback.
func (c *Catalog) SmallTalkPrompt(label, question string) string {
	tmpl := c.SmallTalk.Fallback
	switch label {
	case "ping":
		if c.SmallTalk.Ping != "" {
			tmpl = c.SmallTalk.Ping
		}
	case "out":
		if c.SmallTalk.Out != "" {
			tmpl = c.SmallTalk.Out
		}
	}
	if tmpl == "" {
		return question
	}
	return strings.ReplaceAll(tmpl, PlaceholderQuestion, question)
}

// InadequateAnswer draws one sentence from each pool and joins them in
// reaction, warning, information, redirect order. A nil pick uses the
// package random source.
func (c *Catalog) InadequateAnswer(pick func(n int) int) string {
	if pick == nil {
		pick = rand.IntN
	}
	choose := func(pool []string) string {
		return pool[pick(len(pool))]
	}
	return strings.Join([]string{
		choose(c.Inadequate.Reaction),
		choose(c.Inadequate.Warning),
		choose(c.Inadequate.Information),
		choose(c.Inadequate.Redirect),
	}, " ")
}

// DocumentAnswer renders the document message for the given host.
func (c *Catalog) DocumentAnswer(urlHost string) string {
	return strings.ReplaceAll(c.DocumentMessage, PlaceholderURLHost, urlHost)
}
