package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreWriteBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()

	records := []Record{
		{ID: "r1", TenantID: "acme", Vertical: "events", Model: "gpt-4o", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Timestamp: now},
		{ID: "r2", TenantID: "acme", Vertical: "events", Model: "gpt-4o", PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25, Timestamp: now},
		{ID: "r3", TenantID: "globex", Vertical: "fitness", Model: "gpt-4o-mini", PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10, Timestamp: now},
	}
	require.NoError(t, store.WriteBatch(ctx, records))

	n, err := store.Count(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Re-writing the same IDs must not duplicate rows.
	require.NoError(t, store.WriteBatch(ctx, records[:1]))
	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, total)

	require.NoError(t, store.Close())

	// Records survive reopening the database.
	store2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store2.Close()) }()

	total, err = store2.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

func TestSQLiteStoreRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.WriteBatch(ctx, []Record{
		{ID: "old", TenantID: "acme", Model: "gpt-4o", Timestamp: now.AddDate(0, 0, -100)},
		{ID: "new", TenantID: "acme", Model: "gpt-4o", Timestamp: now},
	}))

	removed, err := store.DeleteOlderThan(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	n, err := store.Count(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBufferedWriterFlushesToStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	w := NewBufferedWriter(store, 10, 50*time.Millisecond)

	w.Write(Record{ID: "r1", TenantID: "acme", Model: "gpt-4o", Timestamp: time.Now().UTC()})
	w.Write(Record{ID: "r2", TenantID: "acme", Model: "gpt-4o", Timestamp: time.Now().UTC()})

	// Close drains and flushes, then closes the store.
	require.NoError(t, w.Close())

	store2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store2.Close()) }()

	n, err := store2.Count(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
