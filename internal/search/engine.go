package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	dexerrors "github.com/gmickel/docdex/internal/errors"
	"github.com/gmickel/docdex/internal/embed"
	"github.com/gmickel/docdex/internal/expand"
)

// Expander produces query variants for the two channels.
// *expand.Expander satisfies this.
type Expander interface {
	Expand(ctx context.Context, query string) *expand.Result
}

// Engine coordinates expansion, the two retrieval channels and merging.
type Engine struct {
	expander Expander
	embedder embed.Embedder
	lexical  LexicalIndex
	vector   VectorIndex
	chunks   ChunkSource
}

// NewEngine wires an engine from its collaborators.
func NewEngine(expander Expander, embedder embed.Embedder, lexical LexicalIndex, vector VectorIndex, chunks ChunkSource) *Engine {
	return &Engine{
		expander: expander,
		embedder: embedder,
		lexical:  lexical,
		vector:   vector,
		chunks:   chunks,
	}
}

// Search expands the query, runs every variant against its channel
// concurrently and interleaves the ranked lists into one deduplicated
// result set.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, dexerrors.New(dexerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := time.Now()
	expansion := e.expander.Expand(ctx, query)

	vectorTexts := make([]string, 0, len(expansion.VectorQueries)+1)
	vectorTexts = append(vectorTexts, expansion.VectorQueries...)
	if expansion.Hyde != "" {
		vectorTexts = append(vectorTexts, expansion.Hyde)
	}

	// Per-channel fetch depth. Pulling more than the final limit from
	// each variant gives the interleaver material to dedupe against.
	perQuery := limit * 2

	lexicalLists := make([][]Hit, len(expansion.LexicalQueries))
	vectorLists := make([][]Hit, len(vectorTexts))

	g, gctx := errgroup.WithContext(ctx)

	for i, q := range expansion.LexicalQueries {
		g.Go(func() error {
			hits, err := e.lexical.Search(gctx, q, perQuery)
			if err != nil {
				return err
			}
			lexicalLists[i] = hits
			return nil
		})
	}

	if e.embedder != nil && e.vector != nil && len(vectorTexts) > 0 {
		g.Go(func() error {
			vectors, err := e.embedder.EmbedBatch(gctx, vectorTexts)
			if err != nil {
				return dexerrors.New(dexerrors.ErrCodeEmbeddingFailed, "failed to embed query variants", err)
			}

			var vg errgroup.Group
			var mu sync.Mutex
			for i, vec := range vectors {
				vg.Go(func() error {
					hits, err := e.vector.Search(gctx, vec, perQuery)
					if err != nil {
						return err
					}
					mu.Lock()
					vectorLists[i] = hits
					mu.Unlock()
					return nil
				})
			}
			return vg.Wait()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeSearchFailed, "search failed", err)
	}

	merged := interleave(append(lexicalLists, vectorLists...), limit)

	results, err := e.materialize(ctx, merged)
	if err != nil {
		return nil, err
	}

	slog.Debug("search_completed",
		slog.String("query", query),
		slog.Int("lexical_variants", len(expansion.LexicalQueries)),
		slog.Int("vector_variants", len(vectorTexts)),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// mergedHit tracks one chunk across channels during interleaving.
type mergedHit struct {
	hit      Hit
	channels []string
}

// interleave walks the ranked lists round-robin, keeping the first
// occurrence of each chunk and recording every channel that produced it.
func interleave(lists [][]Hit, limit int) []mergedHit {
	seen := make(map[string]*mergedHit)
	order := make([]*mergedHit, 0, limit)

	for depth := 0; ; depth++ {
		exhausted := true
		for _, list := range lists {
			if depth >= len(list) {
				continue
			}
			exhausted = false

			hit := list[depth]
			if existing, ok := seen[hit.ChunkID]; ok {
				if !containsChannel(existing.channels, hit.Channel) {
					existing.channels = append(existing.channels, hit.Channel)
				}
				if hit.Score > existing.hit.Score {
					existing.hit.Score = hit.Score
				}
				continue
			}

			m := &mergedHit{hit: hit, channels: []string{hit.Channel}}
			seen[hit.ChunkID] = m
			order = append(order, m)
		}

		if exhausted || len(order) >= limit {
			break
		}
	}

	if len(order) > limit {
		order = order[:limit]
	}

	out := make([]mergedHit, len(order))
	for i, m := range order {
		out[i] = *m
	}
	return out
}

func containsChannel(channels []string, channel string) bool {
	for _, c := range channels {
		if c == channel {
			return true
		}
	}
	return false
}

// materialize resolves merged hits against the chunk store, preserving order.
func (e *Engine) materialize(ctx context.Context, merged []mergedHit) ([]Result, error) {
	if len(merged) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(merged))
	for i, m := range merged {
		ids[i] = m.hit.ChunkID
	}

	records, err := e.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, dexerrors.StoreError("failed to load result chunks", err)
	}

	byID := make(map[string]int, len(records))
	for i, rec := range records {
		byID[rec.ID] = i
	}

	results := make([]Result, 0, len(merged))
	for _, m := range merged {
		idx, ok := byID[m.hit.ChunkID]
		if !ok {
			// Index entry with no stored chunk, skip rather than fail
			continue
		}
		rec := records[idx]
		results = append(results, Result{
			ChunkID:    rec.ID,
			Collection: rec.Collection,
			DocPath:    rec.DocPath,
			Content:    rec.Content,
			HeaderPath: rec.HeaderPath,
			Citation:   rec.Citation,
			Score:      m.hit.Score,
			Channels:   m.channels,
		})
	}

	return results, nil
}
