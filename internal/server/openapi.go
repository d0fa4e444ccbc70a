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
	"net/http"
)

// OpenAPISpec represents the OpenAPI v3 specification.
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Servers    []OpenAPIServer        `json:"servers"`
	Paths      map[string]OpenAPIPath `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIServer describes a server.
type OpenAPIServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIPath contains operations for a path.
type OpenAPIPath struct {
	Get    *OpenAPIOperation `json:"get,omitempty"`
	Post   *OpenAPIOperation `json:"post,omitempty"`
	Put    *OpenAPIOperation `json:"put,omitempty"`
	Delete *OpenAPIOperation `json:"delete,omitempty"`
}

// OpenAPIOperation describes an API operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []OpenAPIParameter         `json:"parameters,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIParameter describes a parameter.
type OpenAPIParameter struct {
	Name        string        `json:"name"`
	In          string        `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Schema      OpenAPISchema `json:"schema"`
}

// OpenAPIRequestBody describes a request body.
type OpenAPIRequestBody struct {
	Description string                      `json:"description,omitempty"`
	Required    bool                        `json:"required"`
	Content     map[string]OpenAPIMediaType `json:"content"`
}

// OpenAPIResponse describes a response.
type OpenAPIResponse struct {
	Description string                      `json:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty"`
}

// OpenAPIMediaType describes a media type.
type OpenAPIMediaType struct {
	Schema OpenAPISchema `json:"schema"`
}

// OpenAPISchema describes a schema.
type OpenAPISchema struct {
	Type        string                   `json:"type,omitempty"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]OpenAPISchema `json:"properties,omitempty"`
	Items       *OpenAPISchema           `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Ref         string                   `json:"$ref,omitempty"`
}

// OpenAPIComponents contains reusable components.
type OpenAPIComponents struct {
	Schemas map[string]OpenAPISchema `json:"schemas"`
}

// handleOpenAPI handles the GET /chat/openapi.json endpoint.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, BuildOpenAPISpec())
}

func jsonContent(ref string) map[string]OpenAPIMediaType {
	return map[string]OpenAPIMediaType{
		"application/json": {Schema: OpenAPISchema{Ref: "#/components/schemas/" + ref}},
	}
}

var badRequest = OpenAPIResponse{
	Description: "Invalid request",
	Content:     jsonContent("ErrorResponse"),
}

// BuildOpenAPISpec constructs the OpenAPI v3 specification.
// This is exported so it can be used to generate static documentation.
func BuildOpenAPISpec() OpenAPISpec {
	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title: "pgEdge RAG Chat API",
			Description: "Chat API answering questions about internal regulations " +
				"with retrieval-augmented generation",
			Version: "1.0.0",
		},
		Servers: []OpenAPIServer{
			{
				URL:         "/chat",
				Description: "Chat API",
			},
		},
		Paths: map[string]OpenAPIPath{
			"/health": {
				Get: &OpenAPIOperation{
					Summary:     "Health check",
					Description: "Report whether the API and its LLM endpoint are up",
					OperationID: "getHealth",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Service status",
							Content:     jsonContent("Health"),
						},
					},
				},
			},
			"/enviar-pergunta/": {
				Post: &OpenAPIOperation{
					Summary: "Ask a question",
					Description: "Answer a question. The response body is a stream of " +
						"newline-delimited JSON envelopes.",
					OperationID: "askQuestion",
					Tags:        []string{"Chat"},
					RequestBody: &OpenAPIRequestBody{
						Required: true,
						Content:  jsonContent("ChatRequest"),
					},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Answer stream",
							Content: map[string]OpenAPIMediaType{
								"text/plain": {
									Schema: OpenAPISchema{
										Type:        "string",
										Description: "One Envelope JSON object per line",
									},
								},
							},
						},
						"400": badRequest,
					},
				},
			},
			"/avaliar-interacao/": {
				Post: &OpenAPIOperation{
					Summary:     "Rate an answer",
					Description: "Record or replace the user's rating of an interaction",
					OperationID: "evaluateInteraction",
					Tags:        []string{"Chat"},
					RequestBody: &OpenAPIRequestBody{
						Required: true,
						Content:  jsonContent("EvaluationRequest"),
					},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Envelope tagged persistencia-avaliacao carrying an EvaluationResult",
							Content:     jsonContent("Envelope"),
						},
						"400": badRequest,
					},
				},
			},
			"/ws": {
				Get: &OpenAPIOperation{
					Summary: "Chat over WebSocket",
					Description: "Upgrade to a WebSocket. Each text frame sent is a ChatRequest; " +
						"each envelope of the answer comes back as one text frame.",
					OperationID: "chatWebSocket",
					Tags:        []string{"Chat"},
					Responses: map[string]OpenAPIResponse{
						"101": {Description: "Switching protocols"},
					},
				},
			},
		},
		Components: OpenAPIComponents{
			Schemas: map[string]OpenAPISchema{
				"ChatRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"pergunta": {Type: "string", Description: "The question"},
						"historico": {
							Type:        "array",
							Description: "Earlier (question, answer) pairs, oldest first",
							Items: &OpenAPISchema{
								Type:  "array",
								Items: &OpenAPISchema{Type: "string"},
							},
						},
						"id_sessao":  {Type: "string", Description: "Conversation session id"},
						"id_cliente": {Type: "string", Description: "Client id"},
						"intencao": {
							Type: "string",
							Description: "Intent label (consulta, doc, ping, out, inadeq). " +
								"Classified by the server when absent.",
						},
					},
					Required: []string{"pergunta"},
				},
				"Envelope": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"tipo": {
							Type:        "string",
							Description: "info, erro, controle or dados",
						},
						"descricao": {Type: "string"},
						"mensagem": {
							Type:        "string",
							Description: "Text for the user, null unless tipo is info or erro",
						},
						"dados": {
							Type: "object",
							Properties: map[string]OpenAPISchema{
								"tag": {
									Type: "string",
									Description: "status, lista-docs-recuperados, frag-resposta-llm, " +
										"servir-documento, interacao-finalizada or persistencia-avaliacao",
								},
								"conteudo": {Description: "Payload, shape depends on tag"},
							},
						},
					},
					Required: []string{"tipo", "descricao", "mensagem"},
				},
				"EvaluationRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"uuid_interacao": {Type: "string", Format: "uuid"},
						"avaliacao": {
							Description: "Number, boolean, null, or one of positivo, negativo, alerta",
						},
						"comentario": {Type: "string"},
					},
					Required: []string{"uuid_interacao"},
				},
				"EvaluationResult": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"uuid_interacao":    {Type: "string", Format: "uuid"},
						"avaliacao":         {Description: "The rating as stored"},
						"comentario":        {Type: "string"},
						"sucesso_avaliacao": {Type: "boolean"},
						"mensagem_retorno":  {Type: "string"},
					},
				},
				"Health": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"status_api":         {Type: "string", Description: "Ativo"},
						"status_cliente_llm": {Type: "string", Description: "Ativo or Inativo"},
					},
					Required: []string{"status_api", "status_cliente_llm"},
				},
				"ErrorResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"error": {
							Type: "object",
							Properties: map[string]OpenAPISchema{
								"code":    {Type: "string"},
								"message": {Type: "string"},
							},
							Required: []string{"code", "message"},
						},
					},
					Required: []string{"error"},
				},
			},
		},
	}
}
