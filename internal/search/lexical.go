package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	dexerrors "github.com/gmickel/docdex/internal/errors"
	"github.com/gmickel/docdex/internal/store"
)

// BleveLexicalIndex wraps Bleve v2 for BM25 keyword search over chunks.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Content    string `json:"content"`
	Collection string `json:"collection"`
	HeaderPath string `json:"header_path"`
}

// Verify interface implementation at compile time
var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// NewBleveLexicalIndex creates a lexical index at path.
// An empty path creates an in-memory index for testing.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	mapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, dexerrors.StoreError(
				fmt.Sprintf("failed to create directory for %s", path), mkErr)
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("failed to open lexical index at %s", path), err)
	}

	return &BleveLexicalIndex{index: idx, path: path}, nil
}

// Index adds chunks to the index in one batch.
func (b *BleveLexicalIndex) Index(ctx context.Context, chunks []store.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, ch := range chunks {
		doc := bleveDocument{
			Content:    ch.Content,
			Collection: ch.Collection,
			HeaderPath: ch.HeaderPath,
		}
		if err := batch.Index(ch.ID, doc); err != nil {
			return dexerrors.New(dexerrors.ErrCodeIndexFailed,
				fmt.Sprintf("failed to index chunk %s", ch.ID), err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return dexerrors.New(dexerrors.ErrCodeIndexFailed, "failed to execute batch", err)
	}

	return nil
}

// Search returns chunks matching the query, scored by BM25.
func (b *BleveLexicalIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeSearchFailed, "lexical search failed", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, Hit{
			ChunkID: hit.ID,
			Score:   hit.Score,
			Channel: ChannelLexical,
		})
	}

	return hits, nil
}

// Delete removes chunks from the index.
func (b *BleveLexicalIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return dexerrors.New(dexerrors.ErrCodeIndexFailed, "failed to delete chunks", err)
	}

	return nil
}

// Count returns the number of indexed chunks.
func (b *BleveLexicalIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	n, err := b.index.DocCount()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the underlying index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
