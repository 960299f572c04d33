package embedder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/pkg/embedder"
)

func TestBreakerPassesThroughWhenHealthy(t *testing.T) {
	upstream := &countingProvider{}
	breaker := embedder.NewBreakerProvider(upstream, embedder.BreakerConfig{})

	vec, err := breaker.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, "closed", breaker.State())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	upstream := &countingProvider{}
	upstream.fail.Store(true)

	breaker := embedder.NewBreakerProvider(upstream, embedder.BreakerConfig{
		MaxFailures: 2,
		Timeout:     time.Minute,
	})

	ctx := context.Background()
	_, err := breaker.Embed(ctx, "a")
	require.Error(t, err)
	_, err = breaker.Embed(ctx, "b")
	require.Error(t, err)

	assert.Equal(t, "open", breaker.State())

	// Open circuit sheds load without calling upstream.
	callsBefore := upstream.calls.Load()
	_, err = breaker.Embed(ctx, "c")
	assert.ErrorIs(t, err, embedder.ErrCircuitOpen)
	assert.Equal(t, callsBefore, upstream.calls.Load())
}

func TestBreakerRecoversAfterTimeout(t *testing.T) {
	upstream := &countingProvider{}
	upstream.fail.Store(true)

	breaker := embedder.NewBreakerProvider(upstream, embedder.BreakerConfig{
		MaxFailures: 1,
		Timeout:     50 * time.Millisecond,
	})

	ctx := context.Background()
	_, err := breaker.Embed(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, "open", breaker.State())

	upstream.fail.Store(false)
	time.Sleep(100 * time.Millisecond)

	vec, err := breaker.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestBreakerCancelledContext(t *testing.T) {
	upstream := &countingProvider{}
	breaker := embedder.NewBreakerProvider(upstream, embedder.BreakerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := breaker.Embed(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}
