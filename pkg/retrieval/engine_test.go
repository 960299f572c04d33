package retrieval_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/pkg/retrieval"
	"github.com/engram-ai/engram-go/pkg/storage"
	"github.com/engram-ai/engram-go/pkg/storage/inmemory"
)

// stubProvider returns canned vectors per text, or fails on demand.
type stubProvider struct {
	vectors map[string][]float64
	fail    bool
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int { return 3 }
func (p *stubProvider) Close() error    { return nil }

func seedRecord(t *testing.T, store storage.Store, id int64, userID, content string, keywords []string, embedding []float64) {
	t.Helper()
	err := store.Create(context.Background(), &storage.Record{
		ID:          id,
		UserID:      userID,
		Type:        "preference",
		Content:     content,
		Keywords:    keywords,
		Embedding:   embedding,
		Importance:  0.7,
		Confidence:  1.0,
		DecayFactor: 1.0,
		IsActive:    true,
	})
	require.NoError(t, err)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{vectors: map[string][]float64{
		"what theme do i like": {1, 0, 0},
	}}

	seedRecord(t, store, 1, "user_001", "I prefer dark mode",
		[]string{"prefer", "dark", "mode"}, []float64{0.95, 0.05, 0})
	seedRecord(t, store, 2, "user_001", "I like hiking",
		[]string{"like", "hiking"}, []float64{0.4, 0.9, 0})

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "user_001", "what theme do i like", 10)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, int64(1), result.Matches[0].Record.ID)
	assert.Greater(t, result.Matches[0].Score, result.Matches[1].Score)
}

func TestSearchFiltersBelowMinSimilarity(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{vectors: map[string][]float64{
		"query": {1, 0, 0},
	}}

	// Orthogonal embedding: raw cosine 0, below the 0.3 cutoff.
	seedRecord(t, store, 1, "user_001", "unrelated fact",
		[]string{"unrelated"}, []float64{0, 1, 0})

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "user_001", "query", 10)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestSearchScopedToUser(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{vectors: map[string][]float64{
		"query": {1, 0, 0},
	}}

	seedRecord(t, store, 1, "user_001", "mine", []string{"mine"}, []float64{1, 0, 0})
	seedRecord(t, store, 2, "user_002", "theirs", []string{"theirs"}, []float64{1, 0, 0})

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "user_001", "query", 10)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "user_001", result.Matches[0].Record.UserID)
}

func TestSearchExcludesInactive(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{vectors: map[string][]float64{
		"query": {1, 0, 0},
	}}

	seedRecord(t, store, 1, "user_001", "active", []string{"active"}, []float64{1, 0, 0})
	seedRecord(t, store, 2, "user_001", "inactive", []string{"inactive"}, []float64{1, 0, 0})
	require.NoError(t, store.SetActive(context.Background(), 2, false))

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "user_001", "query", 10)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, int64(1), result.Matches[0].Record.ID)
}

func TestSearchDegradedFallback(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{fail: true}

	seedRecord(t, store, 1, "user_001", "I prefer dark mode",
		[]string{"prefer", "dark", "mode"}, []float64{1, 0, 0})
	seedRecord(t, store, 2, "user_001", "I like hiking",
		[]string{"like", "hiking"}, []float64{0, 1, 0})

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "user_001", "dark mode theme", 10)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, int64(1), result.Matches[0].Record.ID)
}

func TestSearchRepeatOrderingStable(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{vectors: map[string][]float64{
		"query": {1, 0, 0},
	}}

	seedRecord(t, store, 1, "user_001", "first", []string{"first"}, []float64{0.9, 0.1, 0})
	seedRecord(t, store, 2, "user_001", "second", []string{"second"}, []float64{0.8, 0.2, 0})
	seedRecord(t, store, 3, "user_001", "third", []string{"third"}, []float64{0.7, 0.3, 0})

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	defer engine.Close()

	first, err := engine.Search(context.Background(), "user_001", "query", 10)
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), "user_001", "query", 10)
	require.NoError(t, err)

	require.Equal(t, len(first.Matches), len(second.Matches))
	for i := range first.Matches {
		assert.Equal(t, first.Matches[i].Record.ID, second.Matches[i].Record.ID)
	}
}

func TestSearchTouchesHits(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{vectors: map[string][]float64{
		"query": {1, 0, 0},
	}}

	seedRecord(t, store, 1, "user_001", "hit", []string{"hit"}, []float64{1, 0, 0})

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)

	_, err = engine.Search(context.Background(), "user_001", "query", 10)
	require.NoError(t, err)

	// Close drains the toucher, so the update is applied afterwards.
	require.NoError(t, engine.Close())

	record, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.AccessCount)
	require.NotNil(t, record.LastAccessedAt)
	assert.WithinDuration(t, time.Now(), *record.LastAccessedAt, 5*time.Second)
}

func TestSearchTopK(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{vectors: map[string][]float64{
		"query": {1, 0, 0},
	}}

	for i := int64(1); i <= 5; i++ {
		seedRecord(t, store, i, "user_001", "record", []string{"record"}, []float64{1, 0, 0})
	}

	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "user_001", "query", 2)
	require.NoError(t, err)
	assert.Len(t, result.Matches, 2)
}
