package fileop

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kiln/internal/core/vfs"
)

func newApplier() *Applier {
	return NewApplier(zerolog.Nop())
}

func seed(t *testing.T, ops ...Operation) *vfs.Tree {
	t.Helper()
	res := newApplier().Apply(vfs.New(), ops)
	require.Empty(t, res.Failures)
	return res.Tree
}

func TestApply_CreateFileThenRead(t *testing.T) {
	paths := []string{"a.txt", "src/x.tsx", "deep/ly/nested/file.go"}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			tree := seed(t, CreateFile(p, "content of "+p))
			got, err := tree.ReadFile(vfs.MustParsePath(p))
			require.NoError(t, err)
			assert.Equal(t, "content of "+p, got)
		})
	}
}

func TestApply_UpdateReplacesExisting(t *testing.T) {
	tree := seed(t,
		CreateFile("src/x.tsx", "old"),
		UpdateFile("src/x.tsx", "new"),
	)
	assert.Equal(t, map[string]string{"src/x.tsx": "new"}, tree.Files())
}

func TestApply_CreateFileReplacesFolder(t *testing.T) {
	tree := seed(t,
		CreateFile("thing/inner.txt", "x"),
		CreateFile("thing", "now a file"),
	)
	assert.Equal(t, map[string]string{"thing": "now a file"}, tree.Files())
}

func TestApply_CreateFolder(t *testing.T) {
	tree := seed(t, CreateFile("src/a.ts", "a"))

	res := newApplier().Apply(tree, []Operation{
		CreateFolder("src"),
		CreateFolder("src/components"),
		CreateFolder("src/a.ts"),
	})

	require.Len(t, res.Failures, 1)
	assert.Equal(t, 2, res.Failures[0].Index)
	assert.ErrorIs(t, res.Failures[0].Err, vfs.ErrPathConflict)

	// Existing folder keeps its children.
	got, err := res.Tree.ReadFile(vfs.MustParsePath("src/a.ts"))
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	n, err := res.Tree.Lookup(vfs.MustParsePath("src/components"))
	require.NoError(t, err)
	assert.Equal(t, vfs.KindFolder, n.Kind())
}

func TestApply_DeleteMissingIsNoop(t *testing.T) {
	tree := seed(t, CreateFile("a.txt", "a"))

	res := newApplier().Apply(tree, []Operation{
		DeleteFile("missing.txt"),
		DeleteFolder("no/such/folder"),
		DeleteFile("a.txt/below-a-file"),
	})

	assert.Empty(t, res.Failures)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, tree.Files(), res.Tree.Files())
}

func TestApply_DeleteFolderRemovesSubtree(t *testing.T) {
	tree := seed(t,
		CreateFile("src/a.ts", "a"),
		CreateFile("src/lib/b.ts", "b"),
		CreateFile("README.md", "readme"),
	)

	res := newApplier().Apply(tree, []Operation{DeleteFolder("src")})
	require.Empty(t, res.Failures)
	assert.Equal(t, map[string]string{"README.md": "readme"}, res.Tree.Files())
}

func TestApply_RenameFolderPreservesDescendants(t *testing.T) {
	tree := seed(t,
		CreateFile("components/button/index.tsx", "button"),
		CreateFile("components/button/style.css", "css"),
		CreateFile("components/card.tsx", "card"),
		CreateFolder("components/empty"),
	)
	before, err := tree.Lookup(vfs.MustParsePath("components"))
	require.NoError(t, err)

	res := newApplier().Apply(tree, []Operation{RenameFolder("components", "src/ui")})
	require.Empty(t, res.Failures)

	after, err := res.Tree.Lookup(vfs.MustParsePath("src/ui"))
	require.NoError(t, err)
	assert.Same(t, before, after, "the folder node is relocated, not recreated")

	_, err = res.Tree.Lookup(vfs.MustParsePath("components"))
	require.ErrorIs(t, err, vfs.ErrPathNotFound)

	strip := func(entries []vfs.Entry, prefix string) []vfs.Entry {
		var out []vfs.Entry
		for _, e := range entries {
			if len(e.Path) > len(prefix) && e.Path[:len(prefix)] == prefix {
				e.Path = e.Path[len(prefix):]
				out = append(out, e)
			}
		}
		return out
	}

	want := strip(tree.Entries(), "components/")
	got := strip(res.Tree.Entries(), "src/ui/")
	assert.Empty(t, cmp.Diff(want, got))
}

func TestApply_RenameFailures(t *testing.T) {
	tree := seed(t,
		CreateFile("a.txt", "a"),
		CreateFile("blocker", "file"),
		CreateFile("dir/b.txt", "b"),
	)

	tests := []struct {
		name    string
		op      Operation
		wantErr error
	}{
		{name: "missing source", op: RenameFile("nope.txt", "x.txt"), wantErr: vfs.ErrPathNotFound},
		{name: "destination under a file", op: RenameFile("a.txt", "blocker/a.txt"), wantErr: vfs.ErrPathConflict},
		{name: "kind mismatch", op: RenameFolder("a.txt", "b"), wantErr: vfs.ErrPathConflict},
		{name: "folder into itself", op: RenameFolder("dir", "dir/sub"), wantErr: vfs.ErrPathConflict},
		{name: "empty destination", op: RenameFile("a.txt", ""), wantErr: vfs.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newApplier().Apply(tree, []Operation{tt.op})
			require.Len(t, res.Failures, 1)
			assert.ErrorIs(t, res.Failures[0].Err, tt.wantErr)
			assert.Equal(t, tree.Files(), res.Tree.Files(), "failed rename must have no effect")
		})
	}
}

func TestApply_InvalidOperationIsIsolated(t *testing.T) {
	valid := []Operation{
		CreateFile("src/a.ts", "a"),
		CreateFile("src/b.ts", "b"),
		RenameFile("src/b.ts", "lib/b.ts"),
		DeleteFile("src/a.ts"),
	}
	invalid := CreateFile("src/a.ts/child.ts", "nope")

	want := newApplier().Apply(vfs.New(), valid)
	require.Empty(t, want.Failures)

	for pos := 0; pos <= len(valid); pos++ {
		batch := make([]Operation, 0, len(valid)+1)
		batch = append(batch, valid[:pos]...)
		batch = append(batch, invalid)
		batch = append(batch, valid[pos:]...)

		got := newApplier().Apply(vfs.New(), batch)
		assert.Equal(t, want.Tree.Entries(), got.Tree.Entries(), "invalid op inserted at %d", pos)
		assert.Equal(t, len(valid), got.Applied)
	}
}

func TestApply_LeavesInputUntouched(t *testing.T) {
	tree := seed(t, CreateFile("a.txt", "a"))
	before := tree.Entries()

	_ = newApplier().Apply(tree, []Operation{
		UpdateFile("a.txt", "changed"),
		CreateFile("b.txt", "b"),
	})

	assert.Equal(t, before, tree.Entries())
}

func TestOperation_UnknownKindFailsOnlyItself(t *testing.T) {
	var batch []Operation
	err := json.Unmarshal([]byte(`[
		{"operation":"CREATE_FILE","path":"a.txt","content":"a"},
		{"operation":"MOVE_FILE","path":"a.txt","newPath":"b.txt"}
	]`), &batch)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, Kind("MOVE_FILE"), batch[1].Kind)

	res := newApplier().Apply(vfs.New(), batch)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	require.ErrorIs(t, res.Failures[0].Err, ErrUnknownKind)
	assert.Equal(t, map[string]string{"a.txt": "a"}, res.Tree.Files())
}

func TestApply_RenameOntoOtherKindConflicts(t *testing.T) {
	tree := seed(t,
		CreateFile("a.txt", "a"),
		CreateFile("dir/keep.txt", "keep"),
	)

	tests := []struct {
		name string
		op   Operation
	}{
		{name: "file over folder", op: RenameFile("a.txt", "dir")},
		{name: "folder over file", op: RenameFolder("dir", "a.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newApplier().Apply(tree, []Operation{tt.op})
			require.Len(t, res.Failures, 1)
			require.ErrorIs(t, res.Failures[0].Err, vfs.ErrPathConflict)
			assert.Equal(t, map[string]string{"a.txt": "a", "dir/keep.txt": "keep"}, res.Tree.Files())
		})
	}
}
