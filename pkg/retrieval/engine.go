// Package retrieval ranks a user's memories against a query.
//
// The primary signal is cosine similarity between the query embedding and
// each record's embedding; effective importance, recency, access frequency
// and keyword overlap act as boosters. When the embedding provider is
// unavailable the engine degrades to keyword-overlap search instead of
// failing the request.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/engram-ai/engram-go/pkg/embedder"
	"github.com/engram-ai/engram-go/pkg/storage"
)

// DefaultMinSimilarity is the default raw-cosine cutoff. Candidates below it
// are discarded regardless of their auxiliary boosts.
const DefaultMinSimilarity = 0.3

// DefaultEmbedTimeout bounds the query-embedding call during a search.
const DefaultEmbedTimeout = 5 * time.Second

// Match pairs a record with its final ranking score.
type Match struct {
	Record *storage.Record
	Score  float64
}

// Result is the outcome of a search.
type Result struct {
	// Matches is the ranked hit list, best first.
	Matches []Match

	// Degraded is true when the embedding provider was unavailable and the
	// matches come from keyword-overlap search instead of vector search.
	Degraded bool
}

// Config tunes the retrieval engine.
type Config struct {
	// Weights control signal contribution. Zero value means DefaultWeights.
	Weights Weights

	// MinSimilarity is the raw-cosine cutoff. Zero means DefaultMinSimilarity.
	MinSimilarity float64

	// EmbedTimeout bounds the query-embedding call. Zero means
	// DefaultEmbedTimeout.
	EmbedTimeout time.Duration

	// Reinforcement, when > 0, strengthens a record's importance on each
	// retrieval hit: importance += Reinforcement * (1 - importance).
	Reinforcement float64
}

// Engine scores and ranks memories for retrieval.
type Engine struct {
	store         storage.Store
	provider      embedder.Provider
	weights       Weights
	minSimilarity float64
	embedTimeout  time.Duration
	toucher       *Toucher
}

// NewEngine creates a retrieval engine over store and provider.
//
// The engine owns a Toucher that applies access-count updates off the
// request path; Close releases it.
func NewEngine(store storage.Store, provider embedder.Provider, cfg Config) (*Engine, error) {
	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	minSim := cfg.MinSimilarity
	if minSim == 0 {
		minSim = DefaultMinSimilarity
	}

	embedTimeout := cfg.EmbedTimeout
	if embedTimeout == 0 {
		embedTimeout = DefaultEmbedTimeout
	}

	toucher := NewToucher(store, 0)
	if cfg.Reinforcement > 0 {
		toucher.SetReinforcement(cfg.Reinforcement)
	}

	return &Engine{
		store:         store,
		provider:      provider,
		weights:       weights,
		minSimilarity: minSim,
		embedTimeout:  embedTimeout,
		toucher:       toucher,
	}, nil
}

// Search returns the topK active memories of userID ranked against query.
//
// The query-embedding call runs under its own timeout; when it fails or
// times out, the search falls back to keyword-overlap matching on the
// parent context and the result is flagged Degraded. Every returned record
// is touched asynchronously: the hit's access count and last-access time
// are updated off the request path.
func (e *Engine) Search(ctx context.Context, userID, query string, topK int) (*Result, error) {
	if topK <= 0 {
		topK = 10
	}

	records, err := e.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)

	embedCtx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	queryVec, embedErr := e.provider.Embed(embedCtx, query)
	cancel()

	var result *Result
	if embedErr != nil {
		// Keyword fallback runs on the parent context: a timed-out
		// embedding sub-context must not abort the whole request.
		result = e.keywordSearch(records, queryTokens, topK)
	} else {
		result = e.vectorSearch(records, queryVec, queryTokens, topK)
	}

	now := time.Now()
	for _, m := range result.Matches {
		e.toucher.Touch(m.Record.ID, now)
	}

	return result, nil
}

// Close stops the background toucher, draining pending updates.
func (e *Engine) Close() error {
	e.toucher.Close()
	return nil
}

// vectorSearch ranks records by the weighted score, discarding candidates
// below the raw-cosine cutoff.
func (e *Engine) vectorSearch(records []*storage.Record, queryVec []float64, queryTokens []string, topK int) *Result {
	now := time.Now()

	var matches []Match
	for _, record := range records {
		sim := CosineSimilarity(queryVec, record.Embedding)
		if sim < e.minSimilarity {
			continue
		}
		record.Score = sim
		matches = append(matches, Match{
			Record: record,
			Score:  e.weights.score(record, sim, queryTokens, now),
		})
	}

	sortMatches(matches)
	return &Result{Matches: top(matches, topK)}
}

// keywordSearch scores records purely by query-token overlap against their
// keywords and content. Used when embeddings are unavailable.
func (e *Engine) keywordSearch(records []*storage.Record, queryTokens []string, topK int) *Result {
	var matches []Match
	for _, record := range records {
		score := keywordOverlap(queryTokens, record)
		if score <= 0 {
			continue
		}
		record.Score = score
		matches = append(matches, Match{Record: record, Score: score})
	}

	sortMatches(matches)
	return &Result{Matches: top(matches, topK), Degraded: true}
}

// keywordOverlap is the fraction of query tokens found in the record's
// keywords or as content substrings.
func keywordOverlap(queryTokens []string, record *storage.Record) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	keywords := make(map[string]struct{}, len(record.Keywords))
	for _, kw := range record.Keywords {
		keywords[kw] = struct{}{}
	}
	content := strings.ToLower(record.Content)

	matched := 0
	for _, tok := range queryTokens {
		if _, ok := keywords[tok]; ok {
			matched++
			continue
		}
		if strings.Contains(content, tok) {
			matched++
		}
	}

	return float64(matched) / float64(len(queryTokens))
}

// sortMatches orders matches by score descending, ties broken by the more
// recently accessed record.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return lastAccess(matches[i].Record).After(lastAccess(matches[j].Record))
	})
}

// lastAccess returns the tie-break timestamp for a record.
func lastAccess(record *storage.Record) time.Time {
	if record.LastAccessedAt != nil {
		return *record.LastAccessedAt
	}
	return record.CreatedAt
}

// top truncates matches to at most k entries.
func top(matches []Match, k int) []Match {
	if len(matches) > k {
		return matches[:k]
	}
	return matches
}
