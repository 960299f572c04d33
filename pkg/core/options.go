// Package core provides the main Engram engine and memory management functionality.
package core

import "github.com/engram-ai/engram-go/pkg/classifier"

// StoreOption is a function type for configuring StoreMemory operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type StoreOption func(*StoreOptions)

// StoreOptions contains configuration options for StoreMemory operations.
type StoreOptions struct {
	// Type, if set, overrides the classifier's proposed category.
	Type classifier.Category

	// Importance, if set, overrides the classifier's default importance.
	Importance *float64

	// Source records how the memory was created. Defaults to explicit.
	Source Source

	// Summary is an optional short description of the memory.
	Summary string

	// Context is the back-reference to the originating session/message.
	Context ContextRef
}

// WithType overrides the classifier's proposed category.
//
// Example:
//
//	record, _ := engine.StoreMemory(ctx, "user_001", "content",
//	    core.WithType(classifier.CategoryInstruction))
func WithType(t classifier.Category) StoreOption {
	return func(opts *StoreOptions) {
		opts.Type = t
	}
}

// WithImportance overrides the classifier's default importance.
//
// Example:
//
//	record, _ := engine.StoreMemory(ctx, "user_001", "content",
//	    core.WithImportance(0.9))
func WithImportance(importance float64) StoreOption {
	return func(opts *StoreOptions) {
		opts.Importance = &importance
	}
}

// WithSource records how the memory was created.
//
// Example:
//
//	record, _ := engine.StoreMemory(ctx, "user_001", "content",
//	    core.WithSource(core.SourceConversation))
func WithSource(source Source) StoreOption {
	return func(opts *StoreOptions) {
		opts.Source = source
	}
}

// WithSummary sets an explicit summary for the memory.
func WithSummary(summary string) StoreOption {
	return func(opts *StoreOptions) {
		opts.Summary = summary
	}
}

// WithContextRef links the memory to its originating session/message.
//
// Example:
//
//	record, _ := engine.StoreMemory(ctx, "user_001", "content",
//	    core.WithContextRef("session_42", "msg_7"))
func WithContextRef(sessionID, messageID string) StoreOption {
	return func(opts *StoreOptions) {
		opts.Context = ContextRef{SessionID: sessionID, MessageID: messageID}
	}
}

// applyStoreOptions applies options to a default StoreOptions.
func applyStoreOptions(opts []StoreOption) *StoreOptions {
	options := &StoreOptions{
		Source: SourceExplicit,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// validate rejects overrides that would violate record invariants: an unknown
// category or an importance outside [0.0, 1.0].
func (o *StoreOptions) validate() error {
	if o.Type != "" && !o.Type.Valid() {
		return ErrInvalidRecord
	}
	if o.Importance != nil && (*o.Importance < 0 || *o.Importance > 1) {
		return ErrInvalidRecord
	}
	return nil
}

// SearchOption is a function type for configuring SearchMemories operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for SearchMemories operations.
type SearchOptions struct {
	// TopK is the maximum number of memories to return. Defaults to the
	// engine's configured TopK.
	TopK int
}

// WithTopK limits how many memories a search returns.
//
// Example:
//
//	records, _ := engine.SearchMemories(ctx, "user_001", "query",
//	    core.WithTopK(5))
func WithTopK(topK int) SearchOption {
	return func(opts *SearchOptions) {
		opts.TopK = topK
	}
}

// applySearchOptions applies options to a default SearchOptions.
func applySearchOptions(opts []SearchOption) *SearchOptions {
	options := &SearchOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
