// Package core provides the main Engram engine and memory management functionality.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory was not found.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidRecord indicates that a record failed validation at creation.
	// Rejected, never retried.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmbeddingUnavailable indicates that the embedding provider failed
	// or timed out. Search degrades to keyword matching; StoreMemory fails.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStoreUnavailable indicates that a storage operation failed.
	// Propagated to the caller as a retryable failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// EngineError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &EngineError{
//	    Op:  "StoreMemory",
//	    Err: ErrEmbeddingUnavailable,
//	}
//	// Error() returns: "engram: StoreMemory: embedding unavailable"
type EngineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "engram: <Op>: <Err>"
func (e *EngineError) Error() string {
	return fmt.Sprintf("engram: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with EngineError.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewEngineError("StoreMemory", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "StoreMemory", "SearchMemories")
//   - err: The underlying error to wrap
//
// Returns an EngineError, or nil if err is nil.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{
		Op:  op,
		Err: err,
	}
}
