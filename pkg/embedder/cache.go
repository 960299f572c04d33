package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default maximum number of cached embeddings.
const DefaultCacheSize = 1024

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// CachedProvider wraps a Provider with an LRU cache keyed by content hash.
//
// Identical texts embed to identical vectors, so repeated searches for the
// same query skip the upstream call entirely. Cached vectors are copied on
// both insert and return; callers can mutate results freely.
type CachedProvider struct {
	provider Provider
	cache    *lru.Cache[string, []float64]
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewCachedProvider wraps provider with an LRU cache holding up to size
// entries. A size of zero or less uses DefaultCacheSize.
func NewCachedProvider(provider Provider, size int) (*CachedProvider, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
	}, nil
}

// Embed returns the cached vector for text, or delegates to the wrapped
// provider and caches the result.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := hashKey(text)
	if vec, ok := p.cache.Get(key); ok {
		p.hits.Add(1)
		return cloneVector(vec), nil
	}
	p.misses.Add(1)

	vec, err := p.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	p.cache.Add(key, cloneVector(vec))
	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries and batching only the
// misses through the wrapped provider.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec, ok := p.cache.Get(hashKey(text)); ok {
			p.hits.Add(1)
			results[i] = cloneVector(vec)
			continue
		}
		p.misses.Add(1)
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	vecs, err := p.provider.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, vec := range vecs {
		i := missingIdx[j]
		results[i] = vec
		p.cache.Add(hashKey(texts[i]), cloneVector(vec))
	}

	return results, nil
}

// Dimensions returns the wrapped provider's dimensions.
func (p *CachedProvider) Dimensions() int {
	return p.provider.Dimensions()
}

// Close purges the cache and closes the wrapped provider.
func (p *CachedProvider) Close() error {
	p.cache.Purge()
	return p.provider.Close()
}

// Stats returns a snapshot of cache counters.
func (p *CachedProvider) Stats() CacheStats {
	return CacheStats{
		Hits:   p.hits.Load(),
		Misses: p.misses.Load(),
		Size:   p.cache.Len(),
	}
}

// hashKey derives a stable cache key from text content.
func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// cloneVector copies a vector so cache entries are never shared.
func cloneVector(vec []float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)
	return out
}
