package embedder

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker is open and sheds the request
// rather than calling the failing provider.
var ErrCircuitOpen = errors.New("embedder circuit breaker is open")

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing a probe.
	// Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of successes required in half-open
	// state to close the circuit again. Default: 2.
	HalfOpenMaxSuccesses uint32
}

// BreakerProvider wraps a Provider with a circuit breaker.
//
// When the upstream embedding service is failing, the breaker opens and
// subsequent calls fail fast with ErrCircuitOpen instead of waiting out a
// timeout per call. The retrieval engine treats that the same as any other
// embedding failure and falls back to keyword search.
type BreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps provider with a circuit breaker. Zero-valued
// config fields take the documented defaults.
func NewBreakerProvider(provider Provider, cfg BreakerConfig) *BreakerProvider {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 2
	}

	settings := gobreaker.Settings{
		Name:        "EmbedderCircuitBreaker",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}

	return &BreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// Embed delegates through the breaker.
func (p *BreakerProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	result, err := p.execute(ctx, func() (interface{}, error) {
		return p.provider.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float64), nil
}

// EmbedBatch delegates through the breaker.
func (p *BreakerProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result, err := p.execute(ctx, func() (interface{}, error) {
		return p.provider.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([][]float64), nil
}

// Dimensions returns the wrapped provider's dimensions.
func (p *BreakerProvider) Dimensions() int {
	return p.provider.Dimensions()
}

// Close closes the wrapped provider.
func (p *BreakerProvider) Close() error {
	return p.provider.Close()
}

// State returns the breaker state: "closed", "open" or "half-open".
func (p *BreakerProvider) State() string {
	switch p.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// execute runs fn through the breaker, mapping the open-state error to
// ErrCircuitOpen.
func (p *BreakerProvider) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	return result, nil
}
