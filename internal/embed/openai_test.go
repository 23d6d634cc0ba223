package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "text-embedding-3-small")
	assert.Error(t, err)
}

func TestNewOpenAIEmbedder_ModelDimensions(t *testing.T) {
	tests := []struct {
		model   string
		wantDim int
	}{
		{"", smallDimensions}, // defaults to text-embedding-3-small
		{"text-embedding-3-small", smallDimensions},
		{"text-embedding-3-large", largeDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			e, err := NewOpenAIEmbedder("test-key", tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, e.Dimensions())
		})
	}
}

func TestOpenAIEmbedder_Metadata(t *testing.T) {
	e, err := NewOpenAIEmbedder("test-key", "text-embedding-3-small")
	require.NoError(t, err)

	assert.Equal(t, "openai-text-embedding-3-small", e.ModelName())
	assert.True(t, e.Available(context.Background()))

	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))

	_, embedErr := e.EmbedBatch(context.Background(), []string{"text"})
	assert.Error(t, embedErr)
}

func TestOpenAIEmbedder_EmptyBatch(t *testing.T) {
	e, err := NewOpenAIEmbedder("test-key", "")
	require.NoError(t, err)
	defer e.Close()

	results, embedErr := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, embedErr)
	assert.Empty(t, results)
}
