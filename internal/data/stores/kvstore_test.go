package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kiln/internal/core/kv"
	"github.com/colonyops/kiln/internal/data/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestKVStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))

	type checkpoint struct {
		Name    string         `json:"name"`
		Version int            `json:"version"`
		Files   map[string]int `json:"files"`
	}
	want := checkpoint{Name: "demo", Version: 2, Files: map[string]int{"index.html": 120}}

	require.NoError(t, store.Set(ctx, "workspace:demo", want))

	var got checkpoint
	require.NoError(t, store.Get(ctx, "workspace:demo", &got))
	assert.Equal(t, want, got)
}

func TestKVStore_GetMissing(t *testing.T) {
	var v string
	err := NewKVStore(openTestDB(t)).Get(context.Background(), "nope", &v)
	require.Error(t, err)
	assert.True(t, kv.IsNotFound(err))
}

func TestKVStore_OverwriteKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	store := NewKVStore(database)

	createdAt := func() int64 {
		var ns int64
		require.NoError(t, database.Conn().QueryRowContext(ctx,
			"SELECT created_at FROM kv_store WHERE key = 'k'").Scan(&ns))
		return ns
	}

	require.NoError(t, store.Set(ctx, "k", "first"))
	before := createdAt()
	require.NoError(t, store.Set(ctx, "k", "second"))

	var got string
	require.NoError(t, store.Get(ctx, "k", &got))
	assert.Equal(t, "second", got)
	assert.Equal(t, before, createdAt())
}

func TestKVStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))

	require.NoError(t, store.Set(ctx, "k", 1))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKVStore_Keys(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))

	for _, k := range []string{"workspace:b", "workspace:a", "workspaceX", "work_space:z", "100%:x", "settings"} {
		require.NoError(t, store.Set(ctx, k, k))
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"100%:x", "settings", "work_space:z", "workspace:a", "workspace:b", "workspaceX"}},
		{"workspace:", []string{"workspace:a", "workspace:b"}},
		{"work_", []string{"work_space:z"}},
		{"100%", []string{"100%:x"}},
		{"missing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			keys, err := store.Keys(ctx, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}
}
