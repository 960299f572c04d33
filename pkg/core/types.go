// Package core provides the main Engram engine and memory management functionality.
package core

import (
	"time"

	"github.com/engram-ai/engram-go/pkg/assembler"
	"github.com/engram-ai/engram-go/pkg/classifier"
)

// Source describes how a memory was created.
type Source string

const (
	// SourceExplicit marks a memory stored by a direct user action.
	SourceExplicit Source = "explicit"

	// SourceConversation marks a memory captured from a conversation.
	SourceConversation Source = "conversation"

	// SourceExtraction marks a memory produced by automatic extraction.
	SourceExtraction Source = "extraction"
)

// ContextRef is the structured back-reference to the originating
// session/message, kept for audit and fallback summary.
type ContextRef struct {
	SessionID string `json:"session_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Turn is one conversation turn of session history.
type Turn = assembler.Turn

// MemoryRecord represents a single memory stored in the system.
//
// Example:
//
//	record := &core.MemoryRecord{
//	    ID:      1234567890,
//	    UserID:  "user_001",
//	    Type:    classifier.CategoryPreference,
//	    Content: "I prefer dark mode",
//	}
type MemoryRecord struct {
	// ID is the unique identifier of the memory, assigned at creation.
	ID int64 `json:"id"`

	// UserID identifies the user who owns this memory. Never empty.
	UserID string `json:"user_id"`

	// Type is the memory category, assigned once at creation.
	Type classifier.Category `json:"type"`

	// Content is the full memory text. Immutable after creation; a
	// correction creates a new record rather than mutating this one.
	Content string `json:"content"`

	// Summary is a short derived description (optional).
	Summary string `json:"summary,omitempty"`

	// Keywords are normalized tokens extracted from the content, used as
	// the fallback matching signal when embeddings are unavailable.
	Keywords []string `json:"keywords,omitempty"`

	// Embedding is the vector embedding for similarity search.
	// Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"-"`

	// Importance is the importance score (0.0-1.0). Set at creation by the
	// classifier or caller, mutated only by decay and access reinforcement.
	Importance float64 `json:"importance"`

	// Confidence reflects certainty of automatic extraction (0.0-1.0).
	// Informational; not used in scoring.
	Confidence float64 `json:"confidence"`

	// Source records how the memory was created.
	Source Source `json:"source"`

	// Context is the back-reference to the originating session/message.
	Context ContextRef `json:"context,omitempty"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is when the memory was last returned by a search
	// (nil if never accessed).
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// AccessCount is incremented on each retrieval hit. Never decreases.
	AccessCount int64 `json:"access_count"`

	// DecayFactor is the accumulated time-based importance attenuation
	// (0.0-1.0), multiplied into Importance for an effective importance.
	DecayFactor float64 `json:"decay_factor"`

	// IsActive is false once the memory has been deactivated by decay or
	// manual deletion. Inactive memories are never returned by a search.
	IsActive bool `json:"is_active"`

	// Score is the ranking score from search operations.
	// Transient; never persisted.
	Score float64 `json:"score,omitempty"`
}

// SearchResult contains the results of a search operation.
type SearchResult struct {
	// Records is the list of matching memories, best match first.
	Records []*MemoryRecord

	// Degraded is true when the embedding provider was unavailable and the
	// records come from keyword-overlap matching instead of vector search.
	Degraded bool
}
