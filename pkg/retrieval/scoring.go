package retrieval

import (
	"fmt"
	"math"
	"time"

	"github.com/engram-ai/engram-go/pkg/classifier"
	"github.com/engram-ai/engram-go/pkg/storage"
)

// Weights controls the contribution of each ranking signal to the final
// score. Weights must sum to 1.0 and similarity must be the dominant signal:
// the auxiliary boosts break ties and surface relevant memories, they never
// substitute for semantic match.
type Weights struct {
	Similarity float64
	Importance float64
	Recency    float64
	Frequency  float64
	Keyword    float64
}

// DefaultWeights is the standard ranking weight set.
var DefaultWeights = Weights{
	Similarity: 0.55,
	Importance: 0.15,
	Recency:    0.10,
	Frequency:  0.10,
	Keyword:    0.10,
}

// Validate checks that the weights sum to 1.0 (within floating tolerance)
// and that similarity dominates every other signal.
func (w Weights) Validate() error {
	sum := w.Similarity + w.Importance + w.Recency + w.Frequency + w.Keyword
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %.6f", sum)
	}
	for name, v := range map[string]float64{
		"importance": w.Importance,
		"recency":    w.Recency,
		"frequency":  w.Frequency,
		"keyword":    w.Keyword,
	} {
		if v < 0 {
			return fmt.Errorf("%s weight must be non-negative", name)
		}
		if v >= w.Similarity {
			return fmt.Errorf("similarity weight must dominate %s", name)
		}
	}
	return nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
//
// Returns 0 when the vectors differ in length or when either has zero
// magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// recencyBoost maps elapsed time since the last access to (0, 1] with a
// reciprocal falloff: a memory touched within the last day scores near 1,
// a week-old one near 0.125. Records never accessed fall back to CreatedAt.
func recencyBoost(record *storage.Record, now time.Time) float64 {
	ref := record.CreatedAt
	if record.LastAccessedAt != nil {
		ref = *record.LastAccessedAt
	}

	hours := now.Sub(ref).Hours()
	if hours < 0 {
		hours = 0
	}
	return 1.0 / (1.0 + hours/24.0)
}

// frequencyBoost maps the access count to [0, 1) with diminishing returns:
// n / (n + 5).
func frequencyBoost(accessCount int64) float64 {
	if accessCount <= 0 {
		return 0
	}
	n := float64(accessCount)
	return n / (n + 5.0)
}

// keywordBoost is the fraction of query tokens present in the record's
// keyword set.
func keywordBoost(queryTokens []string, record *storage.Record) float64 {
	if len(queryTokens) == 0 || len(record.Keywords) == 0 {
		return 0
	}

	keywords := make(map[string]struct{}, len(record.Keywords))
	for _, kw := range record.Keywords {
		keywords[kw] = struct{}{}
	}

	matched := 0
	for _, tok := range queryTokens {
		if _, ok := keywords[tok]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(queryTokens))
}

// score computes the weighted final score for a candidate. similarity is the
// raw cosine similarity already computed by the caller.
func (w Weights) score(record *storage.Record, similarity float64, queryTokens []string, now time.Time) float64 {
	effImportance := record.Importance * record.DecayFactor

	return similarity*w.Similarity +
		effImportance*w.Importance +
		recencyBoost(record, now)*w.Recency +
		frequencyBoost(record.AccessCount)*w.Frequency +
		keywordBoost(queryTokens, record)*w.Keyword
}

// tokenize normalizes a query into keyword tokens.
func tokenize(query string) []string {
	return classifier.ExtractKeywords(query)
}
