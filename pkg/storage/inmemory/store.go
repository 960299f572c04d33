// Package inmemory provides a map-backed implementation of the memory store.
//
// It is intended for tests, examples, and ephemeral deployments where nothing
// needs to survive a restart. All operations are safe for concurrent use.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/engram-ai/engram-go/pkg/storage"
)

// Store implements storage.Store backed by an in-process map.
type Store struct {
	mu      sync.RWMutex
	records map[int64]*storage.Record
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[int64]*storage.Record),
	}
}

// Create persists a new record.
func (s *Store) Create(ctx context.Context, record *storage.Record) error {
	if record.ID == 0 || record.UserID == "" || record.Content == "" {
		return fmt.Errorf("Create: %w", storage.ErrInvalidRecord)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Get retrieves a record by ID, active or not.
func (s *Store) Get(ctx context.Context, id int64) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("Get: %w", storage.ErrNotFound)
	}
	return cloneRecord(record), nil
}

// GetActiveByUser returns all active records owned by userID.
func (s *Store) GetActiveByUser(ctx context.Context, userID string) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*storage.Record
	for _, record := range s.records {
		if record.UserID == userID && record.IsActive {
			records = append(records, cloneRecord(record))
		}
	}
	return records, nil
}

// GetActive returns all active records across users (decay pass scan).
func (s *Store) GetActive(ctx context.Context) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*storage.Record
	for _, record := range s.records {
		if record.IsActive {
			records = append(records, cloneRecord(record))
		}
	}
	return records, nil
}

// Update applies a partial mutation to a record.
func (s *Store) Update(ctx context.Context, id int64, mut *storage.Mutation) error {
	if mut.IsZero() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("Update: %w", storage.ErrNotFound)
	}

	if mut.Importance != nil {
		record.Importance = *mut.Importance
	}
	if mut.DecayFactor != nil {
		record.DecayFactor = *mut.DecayFactor
	}
	if mut.Summary != nil {
		record.Summary = *mut.Summary
	}
	if mut.LastAccessedAt != nil {
		t := *mut.LastAccessedAt
		record.LastAccessedAt = &t
	}
	record.AccessCount += mut.AccessCountDelta

	return nil
}

// SetActive flips the active flag on a record.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("SetActive: %w", storage.ErrNotFound)
	}
	record.IsActive = active
	return nil
}

// Purge physically deletes a record.
func (s *Store) Purge(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("Purge: %w", storage.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

// Close releases all records.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]*storage.Record)
	return nil
}

// cloneRecord copies a record so callers never share mutable state with
// the store's internal map.
func cloneRecord(r *storage.Record) *storage.Record {
	clone := *r
	if r.Keywords != nil {
		clone.Keywords = make([]string, len(r.Keywords))
		copy(clone.Keywords, r.Keywords)
	}
	if r.Embedding != nil {
		clone.Embedding = make([]float64, len(r.Embedding))
		copy(clone.Embedding, r.Embedding)
	}
	if r.LastAccessedAt != nil {
		t := *r.LastAccessedAt
		clone.LastAccessedAt = &t
	}
	return &clone
}
