package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notely/internal/model"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "notely.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	file, err := OpenFile(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": sqlite,
		"file":   file,
		"redis":  NewRedis(client, "test"),
	}
}

func TestStoreMissingNamespaceIsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b)

			notes, err := s.LoadNotes(ctx)
			require.NoError(t, err)
			assert.NotNil(t, notes)
			assert.Empty(t, notes)

			tasks, err := s.LoadTasks(ctx)
			require.NoError(t, err)
			assert.Empty(t, tasks)

			users, err := s.LoadUsers(ctx)
			require.NoError(t, err)
			assert.Empty(t, users)

			_, ok, err := s.LoadSession(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRoundTripKeepsInstants(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 3, 10, 8, 15, 30, 123456789, time.FixedZone("BRT", -3*3600))
	updated := created.Add(90 * time.Minute)
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b)

			notes := []model.Note{{
				ID: "n1", UserID: "u1", Title: "Plan", Content: "body", Tags: []string{"work"},
				IsPinned: true, Color: "blue", CreatedAt: created, UpdatedAt: updated,
			}}
			require.NoError(t, s.SaveNotes(ctx, notes))

			got, err := s.LoadNotes(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.True(t, got[0].CreatedAt.Equal(created), "createdAt drifted: %v", got[0].CreatedAt)
			assert.True(t, got[0].UpdatedAt.Equal(updated))
			assert.Equal(t, []string{"work"}, got[0].Tags)
			assert.True(t, got[0].IsPinned)

			tasks := []model.Task{{ID: "t1", UserID: "u1", Title: "Ship", DueDate: &due, CreatedAt: created, UpdatedAt: updated}}
			require.NoError(t, s.SaveTasks(ctx, tasks))
			gotTasks, err := s.LoadTasks(ctx)
			require.NoError(t, err)
			require.Len(t, gotTasks, 1)
			require.NotNil(t, gotTasks[0].DueDate)
			assert.True(t, gotTasks[0].DueDate.Equal(due))
		})
	}
}

func TestStoreEncodesDatesAsISO8601(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	s := New(b)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.SaveNotes(ctx, []model.Note{{ID: "n1", Title: "x", CreatedAt: at, UpdatedAt: at}}))

	raw, err := b.Get(ctx, NamespaceNotes)
	require.NoError(t, err)
	var payload []map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "2025-01-02T03:04:05Z", payload[0]["createdAt"])
	assert.Equal(t, "2025-01-02T03:04:05Z", payload[0]["updatedAt"])
}

func TestStoreSession(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b)
			u := model.User{ID: "u1", Username: "ana"}
			require.NoError(t, s.SaveSession(ctx, u))

			got, ok, err := s.LoadSession(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "ana", got.Username)

			require.NoError(t, s.ClearSession(ctx))
			require.NoError(t, s.ClearSession(ctx))
			_, ok, err = s.LoadSession(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	require.NoError(t, b.Put(ctx, NamespaceNotes, []byte("{not json")))

	_, err := New(b).LoadNotes(ctx)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFileBackendLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := OpenFile(dir)
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, NamespaceTasks, []byte("[]")))
	require.NoError(t, b.Put(ctx, NamespaceTasks, []byte(`[{"id":"t1"}]`)))

	matches, err := filepath.Glob(filepath.Join(dir, tempFilePrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	data, err := b.Get(ctx, NamespaceTasks)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"t1"}]`, string(data))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:already.db?mode=ro", sqliteDSN("file:already.db?mode=ro"))

	dsn := sqliteDSN("/tmp/notely.db")
	assert.Contains(t, dsn, "file:///tmp/notely.db")
	assert.Contains(t, dsn, "mode=rwc")
	assert.Contains(t, dsn, "busy_timeout")
}
