package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitter-badger/ashaw-notes/internal/feed"
	"github.com/gitter-badger/ashaw-notes/pkg/config"
	"github.com/gitter-badger/ashaw-notes/pkg/postgres"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("NOTES_TEST_POSTGRES") == "" {
		t.Skip("set NOTES_TEST_POSTGRES=1 (and NOTES_POSTGRES_* overrides) to run archive integration tests")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	client, err := postgres.New(cfg.Postgres)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := NewStore(client)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestRecordFoldsNoteState(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()
	ts := time.Now().UnixNano()

	require.NoError(t, store.Record(ctx, feed.Event{
		Type:      feed.EventNoteSaved,
		Timestamp: ts,
		Text:      "buy milk #errand",
		EmittedAt: time.Now().UTC(),
	}))
	archived, err := store.Note(ctx, ts)
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, "buy milk #errand", archived.Text)
	assert.Nil(t, archived.DeletedAt)

	require.NoError(t, store.Record(ctx, feed.Event{
		Type:      feed.EventNoteUpdated,
		Timestamp: ts,
		Text:      "buy oat milk #errand",
		EmittedAt: time.Now().UTC(),
	}))
	archived, err = store.Note(ctx, ts)
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, "buy oat milk #errand", archived.Text)

	require.NoError(t, store.Record(ctx, feed.Event{
		Type:      feed.EventNoteDeleted,
		Timestamp: ts,
		EmittedAt: time.Now().UTC(),
	}))
	archived, err = store.Note(ctx, ts)
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.NotNil(t, archived.DeletedAt)

	// Re-saving revives the archived note.
	require.NoError(t, store.Record(ctx, feed.Event{
		Type:      feed.EventNoteSaved,
		Timestamp: ts,
		Text:      "buy milk again",
		EmittedAt: time.Now().UTC(),
	}))
	archived, err = store.Note(ctx, ts)
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Nil(t, archived.DeletedAt)
	assert.Equal(t, "buy milk again", archived.Text)
}

func TestRecordRetiresMovedNote(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()
	oldTs := time.Now().UnixNano()
	newTs := oldTs + 1

	require.NoError(t, store.Record(ctx, feed.Event{
		Type:      feed.EventNoteSaved,
		Timestamp: oldTs,
		Text:      "buy milk",
		EmittedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.Record(ctx, feed.Event{
		Type:         feed.EventNoteUpdated,
		Timestamp:    newTs,
		OldTimestamp: oldTs,
		Text:         "buy bread",
		EmittedAt:    time.Now().UTC(),
	}))

	old, err := store.Note(ctx, oldTs)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.NotNil(t, old.DeletedAt)

	moved, err := store.Note(ctx, newTs)
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.Equal(t, "buy bread", moved.Text)
	assert.Nil(t, moved.DeletedAt)
}

func TestNoteNeverArchived(t *testing.T) {
	store := newIntegrationStore(t)
	archived, err := store.Note(context.Background(), -time.Now().UnixNano())
	require.NoError(t, err)
	assert.Nil(t, archived)
}

func TestRecentEventsIncludesJournaledEvent(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()
	ts := time.Now().UnixNano()

	require.NoError(t, store.Record(ctx, feed.Event{
		Type:      feed.EventSearch,
		Query:     "buy NOT bread",
		Hits:      1,
		Timestamp: ts,
		EmittedAt: time.Now().UTC(),
	}))

	events, err := store.RecentEvents(ctx, 10)
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.Timestamp == ts && e.Type == feed.EventSearch {
			found = true
			assert.Equal(t, "buy NOT bread", e.Query)
		}
	}
	assert.True(t, found, "journaled event not returned")
}
