package core

import (
	"github.com/engram-ai/engram-go/pkg/classifier"
	"github.com/engram-ai/engram-go/pkg/storage"
)

// toStorageRecord converts a core MemoryRecord to the storage representation.
func toStorageRecord(record *MemoryRecord) *storage.Record {
	return &storage.Record{
		ID:             record.ID,
		UserID:         record.UserID,
		Type:           string(record.Type),
		Content:        record.Content,
		Summary:        record.Summary,
		Keywords:       record.Keywords,
		Embedding:      record.Embedding,
		Importance:     record.Importance,
		Confidence:     record.Confidence,
		Source:         string(record.Source),
		SessionID:      record.Context.SessionID,
		MessageID:      record.Context.MessageID,
		CreatedAt:      record.CreatedAt,
		LastAccessedAt: record.LastAccessedAt,
		AccessCount:    record.AccessCount,
		DecayFactor:    record.DecayFactor,
		IsActive:       record.IsActive,
		Score:          record.Score,
	}
}

// fromStorageRecord converts a storage record to the core representation.
func fromStorageRecord(record *storage.Record) *MemoryRecord {
	return &MemoryRecord{
		ID:         record.ID,
		UserID:     record.UserID,
		Type:       classifier.Category(record.Type),
		Content:    record.Content,
		Summary:    record.Summary,
		Keywords:   record.Keywords,
		Embedding:  record.Embedding,
		Importance: record.Importance,
		Confidence: record.Confidence,
		Source:     Source(record.Source),
		Context: ContextRef{
			SessionID: record.SessionID,
			MessageID: record.MessageID,
		},
		CreatedAt:      record.CreatedAt,
		LastAccessedAt: record.LastAccessedAt,
		AccessCount:    record.AccessCount,
		DecayFactor:    record.DecayFactor,
		IsActive:       record.IsActive,
		Score:          record.Score,
	}
}
