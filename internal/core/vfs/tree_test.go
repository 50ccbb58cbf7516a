package vfs

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, files map[string]string) *Tree {
	t.Helper()
	ed := New().Edit()
	for path, content := range files {
		loc, err := ed.Resolve(MustParsePath(path), true)
		require.NoError(t, err)
		loc.Put(NewFile(content))
	}
	return ed.Tree()
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in      string
		want    Path
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "/", want: nil},
		{in: "src/x.tsx", want: Path{"src", "x.tsx"}},
		{in: "/src//components/", want: Path{"src", "components"}},
		{in: "src/../etc", wantErr: true},
		{in: "./a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePath(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPath_HasPrefix(t *testing.T) {
	p := MustParsePath("a/b/c")
	assert.True(t, p.HasPrefix(MustParsePath("a/b")))
	assert.True(t, p.HasPrefix(p))
	assert.True(t, p.HasPrefix(nil))
	assert.False(t, p.HasPrefix(MustParsePath("a/c")))
	assert.False(t, MustParsePath("a").HasPrefix(p))
}

func TestEditor_ResolveCreatesParents(t *testing.T) {
	tree := buildTree(t, map[string]string{"src/app/page.tsx": "page"})

	got, err := tree.ReadFile(MustParsePath("src/app/page.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "page", got)

	n, err := tree.Lookup(MustParsePath("src/app"))
	require.NoError(t, err)
	assert.Equal(t, KindFolder, n.Kind())
}

func TestEditor_ResolveMissingParent(t *testing.T) {
	ed := New().Edit()
	_, err := ed.Resolve(MustParsePath("missing/file.txt"), false)
	require.ErrorIs(t, err, ErrPathNotFound)
}

func TestEditor_ResolveThroughFile(t *testing.T) {
	tree := buildTree(t, map[string]string{"README.md": "hi"})

	ed := tree.Edit()
	_, err := ed.Resolve(MustParsePath("README.md/nested.txt"), true)
	require.ErrorIs(t, err, ErrPathConflict)
}

func TestEditor_ResolveRoot(t *testing.T) {
	_, err := New().Edit().Resolve(nil, true)
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestEditor_DoesNotMutateSource(t *testing.T) {
	base := buildTree(t, map[string]string{
		"src/a.ts":      "a",
		"docs/guide.md": "guide",
	})
	before := base.Entries()

	ed := base.Edit()
	loc, err := ed.Resolve(MustParsePath("src/b.ts"), true)
	require.NoError(t, err)
	loc.Put(NewFile("b"))
	next := ed.Tree()

	assert.Empty(t, cmp.Diff(before, base.Entries()), "source tree must be unchanged")
	assert.Equal(t, map[string]string{
		"src/a.ts":      "a",
		"src/b.ts":      "b",
		"docs/guide.md": "guide",
	}, next.Files())

	// Untouched subtrees are shared between versions.
	baseDocs, _ := base.Lookup(MustParsePath("docs"))
	nextDocs, _ := next.Lookup(MustParsePath("docs"))
	assert.Same(t, baseDocs, nextDocs)

	baseSrc, _ := base.Lookup(MustParsePath("src"))
	nextSrc, _ := next.Lookup(MustParsePath("src"))
	assert.NotSame(t, baseSrc, nextSrc)
}

func TestTree_Clone(t *testing.T) {
	base := buildTree(t, map[string]string{"a/b/c.txt": "c", "d.txt": "d"})
	clone := base.Clone()

	assert.Empty(t, cmp.Diff(base.Entries(), clone.Entries()))

	baseA, _ := base.Lookup(MustParsePath("a"))
	cloneA, _ := clone.Lookup(MustParsePath("a"))
	assert.NotSame(t, baseA, cloneA)
}

func TestTree_Glob(t *testing.T) {
	tree := buildTree(t, map[string]string{
		"src/app/page.tsx":       "",
		"src/components/nav.tsx": "",
		"src/components/nav.css": "",
		"package.json":           "{}",
	})

	got, err := tree.Glob("src/**/*.tsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app/page.tsx", "src/components/nav.tsx"}, got)

	_, err = tree.Glob("src/[")
	require.Error(t, err)
}

func TestTree_JSONRoundTrip(t *testing.T) {
	tree := buildTree(t, map[string]string{"src/x.tsx": "hi", "README.md": "# readme"})

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `{"README.md":"# readme","src":{"x.tsx":"hi"}}`, string(data))

	var decoded Tree
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, cmp.Diff(tree.Entries(), decoded.Entries()))
}

func TestTree_UnmarshalRejectsBadNames(t *testing.T) {
	var tree Tree
	err := json.Unmarshal([]byte(`{"..":"x"}`), &tree)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{"a":42}`), &tree)
	require.Error(t, err)
}

func TestTree_Walk_SkipDir(t *testing.T) {
	tree := buildTree(t, map[string]string{"a/1.txt": "", "b/2.txt": ""})

	var seen []string
	err := tree.Walk(func(p Path, n Node) error {
		seen = append(seen, p.String())
		if p.String() == "a" {
			return SkipDir
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "b/2.txt"}, seen)
}
