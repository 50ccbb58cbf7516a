package vfs

import "fmt"

// Editor is a copy-on-write working copy of a Tree. Folders on the paths it
// resolves are copied the first time they are touched; everything else stays
// shared with the source tree. An Editor that is dropped without calling
// Tree leaves no trace.
type Editor struct {
	root  *Folder
	owned map[*Folder]struct{}
}

// Location is the result of resolving a path inside an Editor: the owned
// parent folder, the final name and whatever node currently sits there.
type Location struct {
	parent   *Folder
	Name     string
	Existing Node
}

// Parent returns the folder that holds (or will hold) the addressed node.
func (l Location) Parent() *Folder { return l.parent }

// Put stores n at the location, replacing any existing node.
func (l Location) Put(n Node) {
	l.parent.children[l.Name] = n
}

// Remove detaches the node at the location and returns it.
func (l Location) Remove() Node {
	n := l.parent.children[l.Name]
	delete(l.parent.children, l.Name)
	return n
}

// Resolve walks p from the root. Missing intermediate folders are created
// when createParents is set and reported as ErrPathNotFound otherwise. An
// intermediate file yields ErrPathConflict. The root path cannot be resolved
// to a location.
func (e *Editor) Resolve(p Path, createParents bool) (Location, error) {
	if p.IsRoot() {
		return Location{}, fmt.Errorf("%w: root has no parent", ErrInvalidPath)
	}

	dir := e.ownRoot()
	for i, name := range p.Dir() {
		switch c := dir.children[name].(type) {
		case nil:
			if !createParents {
				return Location{}, fmt.Errorf("%w: %s", ErrPathNotFound, p[:i+1])
			}
			sub := NewFolder()
			e.owned[sub] = struct{}{}
			dir.children[name] = sub
			dir = sub
		case *Folder:
			dir = e.ownChild(dir, name, c)
		case *File:
			return Location{}, fmt.Errorf("%w: %s is a file", ErrPathConflict, p[:i+1])
		}
	}

	name := p.Base()
	existing := dir.children[name]
	return Location{parent: dir, Name: name, Existing: existing}, nil
}

// Lookup resolves p against the working copy without taking ownership.
func (e *Editor) Lookup(p Path) (Node, error) {
	return (&Tree{root: e.root}).Lookup(p)
}

// Tree freezes the working copy into a new immutable tree. The editor must
// not be used afterwards.
func (e *Editor) Tree() *Tree {
	t := &Tree{root: e.root}
	e.owned = nil
	return t
}

func (e *Editor) ownRoot() *Folder {
	if _, ok := e.owned[e.root]; !ok {
		e.root = e.root.shallowCopy()
		e.owned[e.root] = struct{}{}
	}
	return e.root
}

// ownChild returns an owned copy of child, installing it in parent (which
// must already be owned).
func (e *Editor) ownChild(parent *Folder, name string, child *Folder) *Folder {
	if _, ok := e.owned[child]; ok {
		return child
	}
	cp := child.shallowCopy()
	e.owned[cp] = struct{}{}
	parent.children[name] = cp
	return cp
}
