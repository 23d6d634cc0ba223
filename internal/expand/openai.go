package expand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	dexerrors "github.com/gmickel/docdex/internal/errors"
)

// DefaultChatModel is the chat model used for expansion when none is
// configured.
const DefaultChatModel = openai.GPT4oMini

const expansionSystemPrompt = `You rewrite search queries for a hybrid document retrieval system.
Given one user query, produce JSON with exactly these fields:
  "lexicalQueries": 2-4 short literal strings for exact/fuzzy term matching
  "vectorQueries": 2-4 rephrasings for embedding-similarity search
  "hyde": one short passage (2-3 sentences) that plausibly answers the query
Keep lexical variants terse and keyword-heavy. Make vector variants full
phrasings from different angles. Respond with JSON only.`

// OpenAIGenerator produces expansions with an OpenAI chat model. It is
// non-deterministic; the Expander's schema validation defines correctness,
// not output equality across calls.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	hyde   bool
}

// NewOpenAIGenerator creates a model-backed generator. The API key comes
// from configuration; this package never inspects the environment itself.
func NewOpenAIGenerator(apiKey, model string, hyde bool) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai expansion requires an API key")
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
		hyde:   hyde,
	}, nil
}

// Name identifies the generator in logs.
func (g *OpenAIGenerator) Name() string { return "openai/" + g.model }

// Generate asks the chat model for query variants and a hypothetical
// document, then folds the original query back into both arrays so the
// recall floor does not depend on model discipline.
func (g *OpenAIGenerator) Generate(ctx context.Context, query string) (*Result, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: expansionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return nil, dexerrors.ProviderFailure("chat completion failed", err).
			WithDetail("model", g.model)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	var res Result
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}

	res.LexicalQueries = prependOriginal(query, res.LexicalQueries)
	res.VectorQueries = prependOriginal(query, res.VectorQueries)
	if !g.hyde {
		res.Hyde = ""
	}

	return &res, nil
}

// prependOriginal puts the unmodified query first, dropping any blank
// variants the model produced.
func prependOriginal(query string, variants []string) []string {
	out := []string{query}
	for _, v := range variants {
		if strings.TrimSpace(v) == "" || v == query {
			continue
		}
		out = append(out, v)
	}
	return out
}
