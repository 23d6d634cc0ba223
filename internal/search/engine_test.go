package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dexerrors "github.com/gmickel/docdex/internal/errors"
	"github.com/gmickel/docdex/internal/expand"
	"github.com/gmickel/docdex/internal/position"
	"github.com/gmickel/docdex/internal/store"
)

type fakeExpander struct {
	result *expand.Result
}

func (f *fakeExpander) Expand(ctx context.Context, query string) *expand.Result {
	if f.result != nil {
		return f.result
	}
	return expand.Fallback(query)
}

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                { return 4 }
func (f *fakeEmbedder) ModelName() string              { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                   { return nil }

// fakeLexical returns a canned hit list per query.
type fakeLexical struct {
	hits map[string][]Hit
	err  error
}

func (f *fakeLexical) Index(ctx context.Context, chunks []store.ChunkRecord) error { return nil }

func (f *fakeLexical) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[query], nil
}

func (f *fakeLexical) Delete(ctx context.Context, ids []string) error { return nil }
func (f *fakeLexical) Count() (int, error)                            { return 0, nil }
func (f *fakeLexical) Close() error                                   { return nil }

type fakeChunks struct {
	records map[string]store.ChunkRecord
}

func (f *fakeChunks) GetChunks(ctx context.Context, ids []string) ([]store.ChunkRecord, error) {
	out := make([]store.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func chunkRecord(id, content string) store.ChunkRecord {
	return store.ChunkRecord{
		ID:         id,
		Collection: "docs",
		DocPath:    "guide.md",
		Content:    content,
		Citation: position.Span{
			Start: position.Position{Line: 1, Col: 1},
			End:   position.Position{Line: 1, Col: len(content)},
		},
	}
}

func newEngineFixture(t *testing.T) (*Engine, *fakeExpander, *fakeLexical, *HNSWVectorIndex, *fakeChunks) {
	t.Helper()

	expander := &fakeExpander{}
	lexical := &fakeLexical{hits: map[string][]Hit{}}

	vector, err := NewHNSWVectorIndex(4)
	require.NoError(t, err)
	t.Cleanup(func() { vector.Close() })

	chunks := &fakeChunks{records: map[string]store.ChunkRecord{}}
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}

	engine := NewEngine(expander, embedder, lexical, vector, chunks)
	return engine, expander, lexical, vector, chunks
}

func TestEngineSearchEmptyQuery(t *testing.T) {
	engine, _, _, _, _ := newEngineFixture(t)

	_, err := engine.Search(context.Background(), "   ", Options{})
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeQueryEmpty, dexerrors.GetCode(err))
}

func TestEngineSearchMergesChannels(t *testing.T) {
	ctx := context.Background()

	expander := &fakeExpander{result: &expand.Result{
		LexicalQueries: []string{"session tokens"},
		VectorQueries:  []string{"session tokens"},
	}}

	lexical := &fakeLexical{hits: map[string][]Hit{
		"session tokens": {
			{ChunkID: "c1", Score: 2.5, Channel: ChannelLexical},
			{ChunkID: "c2", Score: 1.0, Channel: ChannelLexical},
		},
	}}

	vector, err := NewHNSWVectorIndex(4)
	require.NoError(t, err)
	defer vector.Close()
	require.NoError(t, vector.Add(ctx,
		[]string{"c1", "c3"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"session tokens": {1, 0, 0, 0},
	}}

	chunks := &fakeChunks{records: map[string]store.ChunkRecord{
		"c1": chunkRecord("c1", "Session tokens are signed."),
		"c2": chunkRecord("c2", "Tokens expire after thirty minutes."),
		"c3": chunkRecord("c3", "Cookies carry the session identifier."),
	}}

	engine := NewEngine(expander, embedder, lexical, vector, chunks)

	results, err := engine.Search(ctx, "session tokens", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// c1 appears in both channels but only once in the output
	byID := make(map[string]Result)
	for _, r := range results {
		byID[r.ChunkID] = r
	}
	require.Contains(t, byID, "c1")
	assert.ElementsMatch(t, []string{ChannelLexical, ChannelVector}, byID["c1"].Channels)
	assert.Equal(t, []string{ChannelLexical}, byID["c2"].Channels)
	assert.Equal(t, []string{ChannelVector}, byID["c3"].Channels)

	// Materialized results carry stored content and citations
	assert.Equal(t, "Session tokens are signed.", byID["c1"].Content)
	assert.Equal(t, 1, byID["c1"].Citation.Start.Line)
}

func TestEngineSearchHydeVariant(t *testing.T) {
	ctx := context.Background()

	expander := &fakeExpander{result: &expand.Result{
		LexicalQueries: []string{"backup"},
		VectorQueries:  []string{"backup"},
		Hyde:           "Backups run nightly and are retained for seven days.",
	}}

	vector, err := NewHNSWVectorIndex(4)
	require.NoError(t, err)
	defer vector.Close()
	require.NoError(t, vector.Add(ctx, []string{"c1"}, [][]float32{{0, 0, 1, 0}}))

	// Only the hyde text maps near the stored vector
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"backup": {0, 1, 0, 0},
		"Backups run nightly and are retained for seven days.": {0, 0, 1, 0},
	}}

	lexical := &fakeLexical{hits: map[string][]Hit{}}
	chunks := &fakeChunks{records: map[string]store.ChunkRecord{
		"c1": chunkRecord("c1", "Nightly backup retention policy."),
	}}

	engine := NewEngine(expander, embedder, lexical, vector, chunks)

	results, err := engine.Search(ctx, "backup", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestEngineSearchLimit(t *testing.T) {
	engine, expander, lexical, _, chunks := newEngineFixture(t)

	expander.result = &expand.Result{LexicalQueries: []string{"q"}}
	hits := make([]Hit, 20)
	for i := range hits {
		id := fmt.Sprintf("c%d", i)
		hits[i] = Hit{ChunkID: id, Score: float64(20 - i), Channel: ChannelLexical}
		chunks.records[id] = chunkRecord(id, "content")
	}
	lexical.hits["q"] = hits

	results, err := engine.Search(context.Background(), "q", Options{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, "c0", results[0].ChunkID)
}

func TestEngineSearchLexicalError(t *testing.T) {
	engine, expander, lexical, _, _ := newEngineFixture(t)

	expander.result = &expand.Result{LexicalQueries: []string{"q"}}
	lexical.err = fmt.Errorf("index unavailable")

	_, err := engine.Search(context.Background(), "q", Options{})
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeSearchFailed, dexerrors.GetCode(err))
}

func TestEngineSearchEmbedError(t *testing.T) {
	expander := &fakeExpander{result: &expand.Result{
		VectorQueries: []string{"q"},
	}}
	embedder := &fakeEmbedder{err: fmt.Errorf("provider down")}

	vector, err := NewHNSWVectorIndex(4)
	require.NoError(t, err)
	defer vector.Close()

	engine := NewEngine(expander, embedder, &fakeLexical{}, vector, &fakeChunks{})

	_, err = engine.Search(context.Background(), "q", Options{})
	require.Error(t, err)
}

func TestEngineSearchSkipsMissingChunks(t *testing.T) {
	engine, expander, lexical, _, chunks := newEngineFixture(t)

	expander.result = &expand.Result{LexicalQueries: []string{"q"}}
	lexical.hits["q"] = []Hit{
		{ChunkID: "present", Score: 2, Channel: ChannelLexical},
		{ChunkID: "ghost", Score: 1, Channel: ChannelLexical},
	}
	chunks.records["present"] = chunkRecord("present", "kept")

	results, err := engine.Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "present", results[0].ChunkID)
}

func TestEngineSearchNoVectorChannel(t *testing.T) {
	expander := &fakeExpander{result: &expand.Result{
		LexicalQueries: []string{"q"},
		VectorQueries:  []string{"q"},
	}}
	lexical := &fakeLexical{hits: map[string][]Hit{
		"q": {{ChunkID: "c1", Score: 1, Channel: ChannelLexical}},
	}}
	chunks := &fakeChunks{records: map[string]store.ChunkRecord{
		"c1": chunkRecord("c1", "text"),
	}}

	engine := NewEngine(expander, nil, lexical, nil, chunks)

	results, err := engine.Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestInterleave(t *testing.T) {
	lexical := []Hit{
		{ChunkID: "a", Score: 3, Channel: ChannelLexical},
		{ChunkID: "b", Score: 2, Channel: ChannelLexical},
	}
	vector := []Hit{
		{ChunkID: "c", Score: 0.9, Channel: ChannelVector},
		{ChunkID: "a", Score: 0.8, Channel: ChannelVector},
		{ChunkID: "d", Score: 0.7, Channel: ChannelVector},
	}

	merged := interleave([][]Hit{lexical, vector}, 10)
	require.Len(t, merged, 4)

	// Round-robin by rank: a and c from depth 0, then b, then d
	assert.Equal(t, "a", merged[0].hit.ChunkID)
	assert.Equal(t, "c", merged[1].hit.ChunkID)
	assert.Equal(t, "b", merged[2].hit.ChunkID)
	assert.Equal(t, "d", merged[3].hit.ChunkID)

	// a keeps its higher score and both channels
	assert.Equal(t, 3.0, merged[0].hit.Score)
	assert.ElementsMatch(t, []string{ChannelLexical, ChannelVector}, merged[0].channels)
}

func TestInterleaveLimit(t *testing.T) {
	list := []Hit{
		{ChunkID: "a", Score: 3, Channel: ChannelLexical},
		{ChunkID: "b", Score: 2, Channel: ChannelLexical},
		{ChunkID: "c", Score: 1, Channel: ChannelLexical},
	}

	merged := interleave([][]Hit{list}, 2)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].hit.ChunkID)
	assert.Equal(t, "b", merged[1].hit.ChunkID)
}

func TestInterleaveEmpty(t *testing.T) {
	assert.Empty(t, interleave(nil, 10))
	assert.Empty(t, interleave([][]Hit{{}, {}}, 10))
}
