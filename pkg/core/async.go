// Package core provides the main Engram engine and memory management functionality.
package core

import (
	"context"
	"sync"
)

// AsyncEngine provides asynchronous Engram operations.
//
// It wraps the synchronous Engine and executes operations in separate
// goroutines, suitable for callers that ingest or query concurrently.
//
// All async methods return channels that receive the result when the
// operation completes. The engine tracks its goroutines and provides Wait()
// to ensure all operations finish.
//
// Example:
//
//	asyncEngine, _ := core.NewAsyncEngine(config)
//	defer asyncEngine.Close()
//
//	resultChan := asyncEngine.StoreMemoryAsync(ctx, "user_001", "I prefer dark mode")
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncEngine struct {
	*Engine
	wg sync.WaitGroup
}

// NewAsyncEngine creates a new asynchronous Engram engine.
//
// Parameters:
//   - cfg: Engine configuration
//
// Returns:
//   - *AsyncEngine: The asynchronous engine instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncEngine(cfg *Config) (*AsyncEngine, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	return &AsyncEngine{
		Engine: engine,
	}, nil
}

// RecordResult contains the result of an asynchronous store operation.
type RecordResult struct {
	// Record is the memory returned by the operation (nil if error occurred).
	Record *MemoryRecord

	// Error is the error returned by the operation (nil on success).
	Error error
}

// AsyncSearchResult contains the result of an asynchronous search operation.
type AsyncSearchResult struct {
	// Result holds the ranked memories and the Degraded flag.
	Result *SearchResult

	// Error is the error returned by the operation (nil on success).
	Error error
}

// ContextResult contains the result of an asynchronous context build.
type ContextResult struct {
	// Context is the assembled context block.
	Context string

	// Error is the error returned by the operation (nil on success).
	Error error
}

// StoreMemoryAsync stores a memory asynchronously.
//
// The operation executes in a separate goroutine and returns its result via
// a channel.
func (ae *AsyncEngine) StoreMemoryAsync(ctx context.Context, userID, content string, opts ...StoreOption) <-chan *RecordResult {
	resultChan := make(chan *RecordResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		record, err := ae.StoreMemory(ctx, userID, content, opts...)
		resultChan <- &RecordResult{
			Record: record,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// SearchMemoriesAsync searches memories asynchronously.
//
// The operation executes in a separate goroutine and returns its result via
// a channel.
func (ae *AsyncEngine) SearchMemoriesAsync(ctx context.Context, userID, query string, opts ...SearchOption) <-chan *AsyncSearchResult {
	resultChan := make(chan *AsyncSearchResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		result, err := ae.SearchMemoriesResult(ctx, userID, query, opts...)
		resultChan <- &AsyncSearchResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// BuildContextAsync assembles a context block asynchronously.
//
// The operation executes in a separate goroutine and returns its result via
// a channel.
func (ae *AsyncEngine) BuildContextAsync(ctx context.Context, userID, query string, history []Turn) <-chan *ContextResult {
	resultChan := make(chan *ContextResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		text, err := ae.BuildContext(ctx, userID, query, history)
		resultChan <- &ContextResult{
			Context: text,
			Error:   err,
		}
		close(resultChan)
	}()

	return resultChan
}

// Wait waits for all asynchronous operations to complete.
//
// This method blocks until all goroutines started by async methods have
// finished. It should be called before program exit.
func (ae *AsyncEngine) Wait() {
	ae.wg.Wait()
}

// Close closes the asynchronous engine.
//
// It first waits for all asynchronous operations to complete, then closes
// the underlying engine.
func (ae *AsyncEngine) Close() error {
	ae.Wait()
	return ae.Engine.Close()
}
