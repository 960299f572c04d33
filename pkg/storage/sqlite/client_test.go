package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/pkg/storage"
	"github.com/engram-ai/engram-go/pkg/storage/sqlite"
)

func newClient(t *testing.T) *sqlite.Client {
	t.Helper()
	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "engram_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newRecord(id int64, userID string) *storage.Record {
	now := time.Now()
	return &storage.Record{
		ID:          id,
		UserID:      userID,
		Type:        "preference",
		Content:     "I prefer dark mode",
		Summary:     "dark mode preference",
		Keywords:    []string{"prefer", "dark", "mode"},
		Embedding:   []float64{0.1, 0.2, 0.3},
		Importance:  0.7,
		Confidence:  1.0,
		Source:      "conversation",
		SessionID:   "session_42",
		MessageID:   "msg_7",
		CreatedAt:   now,
		DecayFactor: 1.0,
		IsActive:    true,
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.Create(ctx, newRecord(1, "user_001")))

	record, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "user_001", record.UserID)
	assert.Equal(t, "I prefer dark mode", record.Content)
	assert.Equal(t, []string{"prefer", "dark", "mode"}, record.Keywords)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, record.Embedding)
	assert.Equal(t, "session_42", record.SessionID)
	assert.True(t, record.IsActive)
	assert.Nil(t, record.LastAccessedAt)
}

func TestCreateRejectsInvalidRecord(t *testing.T) {
	client := newClient(t)

	err := client.Create(context.Background(), &storage.Record{ID: 1, Content: "no user"})
	assert.ErrorIs(t, err, storage.ErrInvalidRecord)

	err = client.Create(context.Background(), &storage.Record{UserID: "user_001", Content: "no id"})
	assert.ErrorIs(t, err, storage.ErrInvalidRecord)
}

func TestGetNotFound(t *testing.T) {
	client := newClient(t)

	_, err := client.Get(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetActiveByUser(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.Create(ctx, newRecord(1, "user_001")))
	require.NoError(t, client.Create(ctx, newRecord(2, "user_001")))
	require.NoError(t, client.Create(ctx, newRecord(3, "user_002")))
	require.NoError(t, client.SetActive(ctx, 2, false))

	records, err := client.GetActiveByUser(ctx, "user_001")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
}

func TestUpdatePartialMerge(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.Create(ctx, newRecord(1, "user_001")))

	now := time.Now().UTC().Truncate(time.Second)
	factor := 0.85
	err := client.Update(ctx, 1, &storage.Mutation{
		DecayFactor:      &factor,
		LastAccessedAt:   &now,
		AccessCountDelta: 2,
	})
	require.NoError(t, err)

	record, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.85, record.DecayFactor)
	assert.Equal(t, int64(2), record.AccessCount)
	require.NotNil(t, record.LastAccessedAt)
	// Untouched fields survive the partial update.
	assert.Equal(t, 0.7, record.Importance)
	assert.Equal(t, "I prefer dark mode", record.Content)
}

func TestUpdateNotFound(t *testing.T) {
	client := newClient(t)
	factor := 0.5

	err := client.Update(context.Background(), 42, &storage.Mutation{DecayFactor: &factor})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetActiveAndGetActive(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.Create(ctx, newRecord(1, "user_001")))
	require.NoError(t, client.Create(ctx, newRecord(2, "user_002")))
	require.NoError(t, client.SetActive(ctx, 1, false))

	records, err := client.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ID)

	// The deactivated record is still retrievable by ID.
	record, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, record.IsActive)
}

func TestPurge(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.Create(ctx, newRecord(1, "user_001")))
	require.NoError(t, client.Purge(ctx, 1))

	_, err := client.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
