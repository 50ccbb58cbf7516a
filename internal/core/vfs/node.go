// Package vfs implements the in-memory project tree: a hierarchy of folders
// and text files addressed by slash separated paths.
//
// Published trees are never mutated. Changes are made through an Editor,
// which copies only the folders along the paths it touches and leaves every
// other node shared with the tree it was derived from.
package vfs

import "sort"

// Kind discriminates the two node variants.
type Kind int

const (
	KindFile Kind = iota + 1
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Node is either a *File or a *Folder.
type Node interface {
	Kind() Kind
	node()
}

// File is a leaf holding text content. Files are immutable once created;
// updates replace the node.
type File struct {
	content string
}

// NewFile returns a file holding content.
func NewFile(content string) *File {
	return &File{content: content}
}

func (f *File) Kind() Kind { return KindFile }
func (f *File) node()      {}

// Content returns the file text.
func (f *File) Content() string { return f.content }

// Folder holds uniquely named children.
type Folder struct {
	children map[string]Node
}

// NewFolder returns an empty folder.
func NewFolder() *Folder {
	return &Folder{children: make(map[string]Node)}
}

func (f *Folder) Kind() Kind { return KindFolder }
func (f *Folder) node()      {}

// Child returns the child with the given name.
func (f *Folder) Child(name string) (Node, bool) {
	n, ok := f.children[name]
	return n, ok
}

// Names returns the child names in sorted order.
func (f *Folder) Names() []string {
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of direct children.
func (f *Folder) Len() int { return len(f.children) }

// shallowCopy returns a folder with the same children map contents.
func (f *Folder) shallowCopy() *Folder {
	cp := &Folder{children: make(map[string]Node, len(f.children))}
	for name, child := range f.children {
		cp.children[name] = child
	}
	return cp
}

// deepCopy duplicates the folder and every descendant.
func (f *Folder) deepCopy() *Folder {
	cp := &Folder{children: make(map[string]Node, len(f.children))}
	for name, child := range f.children {
		switch c := child.(type) {
		case *File:
			cp.children[name] = NewFile(c.content)
		case *Folder:
			cp.children[name] = c.deepCopy()
		}
	}
	return cp
}
