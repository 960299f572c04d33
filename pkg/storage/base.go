// Package storage provides interfaces and types for memory record persistence.
//
// It defines the Store interface that all storage backends must satisfy, along
// with the persisted Record type and the partial-update Mutation type.
package storage

import (
	"context"
	"errors"
	"time"
)

// Common storage errors returned by Store implementations.
var (
	// ErrNotFound indicates that a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRecord indicates that a record failed validation at creation.
	ErrInvalidRecord = errors.New("invalid record")
)

// Record represents a memory record as persisted by a storage backend.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. It mirrors the core.MemoryRecord structure.
type Record struct {
	// ID is the unique identifier of the record.
	ID int64

	// UserID identifies the user who owns this record. Never empty.
	UserID string

	// Type is the memory category ("preference", "personal", ...).
	Type string

	// Content is the full memory text. Immutable after creation.
	Content string

	// Summary is a short derived description (optional).
	Summary string

	// Keywords are normalized tokens extracted from the content.
	Keywords []string

	// Embedding is the vector embedding for similarity search.
	Embedding []float64

	// Importance is the importance score in [0.0, 1.0].
	Importance float64

	// Confidence reflects certainty of automatic extraction, in [0.0, 1.0].
	Confidence float64

	// Source records how the memory was created ("explicit", "conversation", "extraction").
	Source string

	// SessionID and MessageID form the back-reference to the originating
	// session/message (for audit and fallback summary).
	SessionID string
	MessageID string

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// LastAccessedAt is when the record was last returned by a search
	// (nil if never accessed).
	LastAccessedAt *time.Time

	// AccessCount is the number of times the record was returned by a search.
	// Monotonically increasing.
	AccessCount int64

	// DecayFactor is the accumulated time-based importance attenuation,
	// in [0.0, 1.0].
	DecayFactor float64

	// IsActive is false once the record has been deactivated by decay or
	// manual deletion. Inactive records are excluded from retrieval.
	IsActive bool

	// Score is the similarity score from search operations. Transient,
	// never persisted.
	Score float64
}

// Mutation describes a partial update to a record.
//
// Only non-nil fields are written; everything else is preserved. This keeps
// concurrent writers (the retrieval touch path and the decay pass) from
// clobbering each other's fields.
type Mutation struct {
	// Importance, if set, replaces the importance score.
	Importance *float64

	// DecayFactor, if set, replaces the decay factor.
	DecayFactor *float64

	// Summary, if set, replaces the summary.
	Summary *string

	// LastAccessedAt, if set, replaces the last-access timestamp.
	LastAccessedAt *time.Time

	// AccessCountDelta is added to the access count inside the store,
	// so concurrent touches never lose increments.
	AccessCountDelta int64
}

// IsZero reports whether the mutation would change nothing.
func (m *Mutation) IsZero() bool {
	return m == nil ||
		(m.Importance == nil && m.DecayFactor == nil && m.Summary == nil &&
			m.LastAccessedAt == nil && m.AccessCountDelta == 0)
}

// Store defines the interface for memory record storage backends.
//
// All backends (SQLite, PostgreSQL, MySQL, in-memory) must implement this
// interface. Every operation that touches user data is scoped by the record's
// UserID; cross-user leakage is a correctness violation.
type Store interface {
	// Create persists a new record.
	//
	// Timestamps are assigned if absent. ID assignment is the caller's
	// duty; records with a zero ID, empty UserID or empty Content are
	// rejected with ErrInvalidRecord.
	Create(ctx context.Context, record *Record) error

	// Get retrieves a record by ID, active or not.
	// Returns ErrNotFound if the record does not exist.
	Get(ctx context.Context, id int64) (*Record, error)

	// GetActiveByUser returns all active records owned by userID.
	// Ordering is unspecified; the retrieval engine re-orders.
	GetActiveByUser(ctx context.Context, userID string) ([]*Record, error)

	// GetActive returns all active records across users.
	// Used by the decay pass, which visits every owner.
	GetActive(ctx context.Context) ([]*Record, error)

	// Update applies a partial mutation to a record.
	// Fields not named by the mutation are preserved.
	Update(ctx context.Context, id int64, mut *Mutation) error

	// SetActive flips the active flag. Deactivated records stay stored
	// for audit/export until explicitly purged.
	SetActive(ctx context.Context, id int64, active bool) error

	// Purge physically deletes a record. Only explicit purge removes data.
	Purge(ctx context.Context, id int64) error

	// Close closes the store and releases resources.
	Close() error
}
