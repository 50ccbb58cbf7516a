package stores

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kiln/internal/core/fileop"
	"github.com/colonyops/kiln/internal/core/vfs"
)

func treeOf(t *testing.T, ops ...fileop.Operation) *vfs.Tree {
	t.Helper()
	res := fileop.NewApplier(zerolog.Nop()).Apply(vfs.New(), ops)
	require.Empty(t, res.Failures)
	return res.Tree
}

func TestHistoryStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(openTestDB(t))

	tree := treeOf(t, fileop.CreateFile("src/app.tsx", "app"), fileop.CreateFolder("public"))
	require.NoError(t, store.Record(ctx, TreeVersion{
		WorkspaceID: "ws1",
		Version:     1,
		Reason:      "task",
		TaskID:      "t-1",
		Tree:        tree,
	}))

	got, err := store.Get(ctx, "ws1", 1)
	require.NoError(t, err)
	assert.Equal(t, "task", got.Reason)
	assert.Equal(t, "t-1", got.TaskID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, tree.Entries(), got.Tree.Entries())
}

func TestHistoryStore_DuplicateVersion(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(openTestDB(t))

	v := TreeVersion{WorkspaceID: "ws1", Version: 1, Tree: vfs.New()}
	require.NoError(t, store.Record(ctx, v))
	require.Error(t, store.Record(ctx, v))

	v.WorkspaceID = "ws2"
	require.NoError(t, store.Record(ctx, v), "versions are scoped per workspace")
}

func TestHistoryStore_ListAndLatest(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(openTestDB(t))

	_, err := store.Latest(ctx, "ws1")
	require.ErrorIs(t, err, sql.ErrNoRows)

	for i := int64(1); i <= 3; i++ {
		tree := treeOf(t, fileop.CreateFile("v.txt", string(rune('0'+i))))
		require.NoError(t, store.Record(ctx, TreeVersion{WorkspaceID: "ws1", Version: i, Tree: tree}))
	}

	list, err := store.List(ctx, "ws1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].Version)
	assert.Equal(t, int64(1), list[2].Version)
	assert.Nil(t, list[0].Tree)

	latest, err := store.Latest(ctx, "ws1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Version)
	assert.Equal(t, map[string]string{"v.txt": "3"}, latest.Tree.Files())

	empty, err := store.List(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(openTestDB(t))

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.Record(ctx, TreeVersion{WorkspaceID: "ws1", Version: i}))
	}
	require.NoError(t, store.Record(ctx, TreeVersion{WorkspaceID: "ws2", Version: 1}))

	n, err := store.Prune(ctx, "ws1", 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Prune(ctx, "ws1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	list, err := store.List(ctx, "ws1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(5), list[0].Version)
	assert.Equal(t, int64(4), list[1].Version)

	other, err := store.List(ctx, "ws2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestHistoryStore_DeleteWorkspace(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(openTestDB(t))

	require.NoError(t, store.Record(ctx, TreeVersion{WorkspaceID: "ws1", Version: 1}))
	require.NoError(t, store.DeleteWorkspace(ctx, "ws1"))

	_, err := store.Get(ctx, "ws1", 1)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestHistoryStore_Workspaces(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(openTestDB(t))

	ids, err := store.Workspaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, v := range []TreeVersion{
		{WorkspaceID: "ws2", Version: 1, Tree: vfs.New()},
		{WorkspaceID: "ws1", Version: 1, Tree: vfs.New()},
		{WorkspaceID: "ws1", Version: 2, Tree: vfs.New()},
	} {
		require.NoError(t, store.Record(ctx, v))
	}

	ids, err = store.Workspaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws1", "ws2"}, ids)
}
