package vfs

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// SkipDir tells Walk not to descend into the current folder.
var SkipDir = errors.New("skip dir")

// Tree is an immutable snapshot of the project document. The zero value is
// not usable; call New or decode one from JSON.
type Tree struct {
	root *Folder
}

// New returns a tree holding an empty root folder.
func New() *Tree {
	return &Tree{root: NewFolder()}
}

// Root returns the root folder. Callers must treat it as read-only.
func (t *Tree) Root() *Folder { return t.root }

// Lookup resolves p without creating anything. The root path resolves to the
// root folder.
func (t *Tree) Lookup(p Path) (Node, error) {
	var cur Node = t.root
	for i, name := range p {
		dir, ok := cur.(*Folder)
		if !ok {
			return nil, fmt.Errorf("%w: %s is a file", ErrPathConflict, p[:i])
		}
		child, ok := dir.children[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p[:i+1])
		}
		cur = child
	}
	return cur, nil
}

// ReadFile returns the content of the file at p.
func (t *Tree) ReadFile(p Path) (string, error) {
	n, err := t.Lookup(p)
	if err != nil {
		return "", err
	}
	f, ok := n.(*File)
	if !ok {
		return "", fmt.Errorf("%w: %s is a folder", ErrPathConflict, p)
	}
	return f.content, nil
}

// WalkFunc is called for every node below the root in depth first,
// name sorted order.
type WalkFunc func(p Path, n Node) error

// Walk visits every node in the tree. Returning SkipDir from fn for a folder
// skips its children; any other error stops the walk.
func (t *Tree) Walk(fn WalkFunc) error {
	err := walk(nil, t.root, fn)
	if errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func walk(prefix Path, dir *Folder, fn WalkFunc) error {
	for _, name := range dir.Names() {
		child := dir.children[name]
		p := prefix.Join(name)
		err := fn(p, child)
		if errors.Is(err, SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if sub, ok := child.(*Folder); ok {
			if err := walk(p, sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files returns every file keyed by its path string.
func (t *Tree) Files() map[string]string {
	out := make(map[string]string)
	_ = t.Walk(func(p Path, n Node) error {
		if f, ok := n.(*File); ok {
			out[p.String()] = f.content
		}
		return nil
	})
	return out
}

// Entry is a flattened description of one node, used for listings and diffs.
type Entry struct {
	Path    string
	Kind    Kind
	Content string
}

// Entries lists every node in walk order.
func (t *Tree) Entries() []Entry {
	var out []Entry
	_ = t.Walk(func(p Path, n Node) error {
		e := Entry{Path: p.String(), Kind: n.Kind()}
		if f, ok := n.(*File); ok {
			e.Content = f.content
		}
		out = append(out, e)
		return nil
	})
	return out
}

// Glob returns the paths of all nodes matching a doublestar pattern such as
// "src/**/*.tsx".
func (t *Tree) Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}

	var matches []string
	err := t.Walk(func(p Path, _ Node) error {
		ok, err := doublestar.Match(pattern, p.String())
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, p.String())
		}
		return nil
	})
	return matches, err
}

// Clone returns a deep copy that shares no nodes with t.
func (t *Tree) Clone() *Tree {
	return &Tree{root: t.root.deepCopy()}
}

// Edit starts a working copy derived from t. t itself is never modified.
func (t *Tree) Edit() *Editor {
	return &Editor{
		root:  t.root,
		owned: make(map[*Folder]struct{}),
	}
}
