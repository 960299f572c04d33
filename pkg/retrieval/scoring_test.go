package retrieval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/engram-ai/engram-go/pkg/retrieval"
)

func TestCosineSimilaritySelf(t *testing.T) {
	vectors := [][]float64{
		{1, 0, 0},
		{0.5, 0.5, 0.7},
		{-1, 2, -3},
	}

	for _, v := range vectors {
		assert.InDelta(t, 1.0, retrieval.CosineSimilarity(v, v), 1e-9)
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.1, 0.9, 0.3}
	b := []float64{0.8, 0.2, 0.5}

	assert.InDelta(t, retrieval.CosineSimilarity(a, b), retrieval.CosineSimilarity(b, a), 1e-12)
}

func TestCosineSimilarityZeroMagnitude(t *testing.T) {
	zero := []float64{0, 0, 0}
	v := []float64{1, 2, 3}

	assert.Equal(t, 0.0, retrieval.CosineSimilarity(zero, v))
	assert.Equal(t, 0.0, retrieval.CosineSimilarity(v, zero))
	assert.Equal(t, 0.0, retrieval.CosineSimilarity(zero, zero))
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	assert.Equal(t, 0.0, retrieval.CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, retrieval.CosineSimilarity(nil, nil))
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.InDelta(t, 0.0, retrieval.CosineSimilarity(a, b), 1e-12)
}

func TestDefaultWeightsValid(t *testing.T) {
	assert.NoError(t, retrieval.DefaultWeights.Validate())
}

func TestWeightsValidateSum(t *testing.T) {
	w := retrieval.Weights{
		Similarity: 0.5,
		Importance: 0.2,
		Recency:    0.2,
		Frequency:  0.2,
		Keyword:    0.2,
	}
	assert.Error(t, w.Validate())
}

func TestWeightsValidateDominance(t *testing.T) {
	w := retrieval.Weights{
		Similarity: 0.25,
		Importance: 0.25,
		Recency:    0.2,
		Frequency:  0.15,
		Keyword:    0.15,
	}
	assert.Error(t, w.Validate())
}
