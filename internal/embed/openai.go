package embed

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	dexerrors "github.com/gmickel/docdex/internal/errors"
)

// OpenAI embedding model dimensions.
const (
	smallDimensions = 1536
	largeDimensions = 3072
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int

	mu     sync.RWMutex
	closed bool
}

// NewOpenAIEmbedder creates an OpenAI-backed embedder. The API key is
// passed in by the caller; this package never reads the environment.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, dexerrors.ConfigError("openai embeddings require an API key", nil)
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	dim := smallDimensions
	if model == "text-embedding-3-large" {
		dim = largeDimensions
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, dexerrors.ProviderFailure("embeddings request failed", err).
			WithDetail("model", e.model)
	}

	if len(resp.Data) != len(texts) {
		return nil, dexerrors.New(dexerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), nil)
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		// Unit-length vectors keep cosine similarity a plain dot product.
		results[data.Index] = normalizeVector(data.Embedding)
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dim
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return "openai-" + e.model
}

// Available checks if the embedder is ready.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
