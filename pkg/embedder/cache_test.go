package embedder_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/pkg/embedder"
)

// countingProvider counts upstream calls and can fail on demand.
type countingProvider struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return nil, errors.New("provider down")
	}
	return []float64{float64(len(text)), 1, 0}, nil
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return nil, errors.New("provider down")
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), 1, 0}
	}
	return out, nil
}

func (p *countingProvider) Dimensions() int { return 3 }
func (p *countingProvider) Close() error    { return nil }

func TestCachedProviderHit(t *testing.T) {
	upstream := &countingProvider{}
	cached, err := embedder.NewCachedProvider(upstream, 16)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	second, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), upstream.calls.Load(), "second call must hit the cache")

	stats := cached.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestCachedProviderReturnsCopies(t *testing.T) {
	upstream := &countingProvider{}
	cached, err := embedder.NewCachedProvider(upstream, 16)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	first[0] = -999

	second, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.NotEqual(t, -999.0, second[0], "caller mutation must not poison the cache")
}

func TestCachedProviderEviction(t *testing.T) {
	upstream := &countingProvider{}
	cached, err := embedder.NewCachedProvider(upstream, 2)
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = cached.Embed(ctx, "a")
	_, _ = cached.Embed(ctx, "b")
	_, _ = cached.Embed(ctx, "c") // evicts "a"

	_, err = cached.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), upstream.calls.Load(), "evicted entry must refetch")
}

func TestCachedProviderBatchMixesHitsAndMisses(t *testing.T) {
	upstream := &countingProvider{}
	cached, err := embedder.NewCachedProvider(upstream, 16)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Embed(ctx, "warm")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"warm", "cold"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float64(len("warm")), vecs[0][0])
	assert.Equal(t, float64(len("cold")), vecs[1][0])

	// One call for the warm miss, one batch call for the cold miss only.
	assert.Equal(t, int64(2), upstream.calls.Load())
}

func TestCachedProviderErrorNotCached(t *testing.T) {
	upstream := &countingProvider{}
	upstream.fail.Store(true)

	cached, err := embedder.NewCachedProvider(upstream, 16)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Embed(ctx, "hello")
	require.Error(t, err)

	upstream.fail.Store(false)
	vec, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.NotNil(t, vec)
}
