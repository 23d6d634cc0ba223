// Package search implements hybrid retrieval over indexed chunks.
//
// A query is expanded into lexical and vector variants, each variant
// fans out to its channel's index concurrently, and the ranked lists
// are interleaved into one deduplicated result set.
package search

import (
	"context"

	"github.com/gmickel/docdex/internal/position"
	"github.com/gmickel/docdex/internal/store"
)

// Channel names attached to hits.
const (
	ChannelLexical = "lexical"
	ChannelVector  = "vector"
)

// DefaultLimit caps results when the caller does not set one.
const DefaultLimit = 10

// Hit is one scored chunk reference from a single channel.
type Hit struct {
	ChunkID string
	Score   float64
	Channel string
}

// Result is a materialized hit with its stored chunk and citation.
type Result struct {
	ChunkID    string        `json:"chunkId"`
	Collection string        `json:"collection"`
	DocPath    string        `json:"docPath"`
	Content    string        `json:"content"`
	HeaderPath string        `json:"headerPath,omitempty"`
	Citation   position.Span `json:"citation"`
	Score      float64       `json:"score"`
	Channels   []string      `json:"channels"`
}

// Options tunes one search call.
type Options struct {
	// Limit caps the merged result count (default: DefaultLimit).
	Limit int
}

// LexicalIndex is the keyword search channel.
type LexicalIndex interface {
	Index(ctx context.Context, chunks []store.ChunkRecord) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
	Count() (int, error)
	Close() error
}

// VectorIndex is the semantic search channel.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
	Count() int
	Close() error
}

// ChunkSource resolves chunk IDs to stored records.
// *store.Store satisfies this.
type ChunkSource interface {
	GetChunks(ctx context.Context, ids []string) ([]store.ChunkRecord, error)
}
