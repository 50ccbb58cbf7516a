package vfs

import (
	"errors"
	"fmt"
	"strings"
)

// Separator divides path components.
const Separator = "/"

var (
	// ErrPathNotFound is returned when a path, or one of its parents, does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrPathConflict is returned when a path component is occupied by a node
	// of the wrong kind.
	ErrPathConflict = errors.New("path conflict")
	// ErrInvalidPath is returned for empty paths and malformed names.
	ErrInvalidPath = errors.New("invalid path")
)

// Path is a sequence of names from the root. The root path is empty.
type Path []string

// ParsePath splits a slash separated string into a Path. Leading, trailing
// and repeated separators are ignored. "." and ".." are rejected.
func ParsePath(s string) (Path, error) {
	var p Path
	for _, part := range strings.Split(s, Separator) {
		if part == "" {
			continue
		}
		if err := ValidName(part); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPath, s, err)
		}
		p = append(p, part)
	}
	return p, nil
}

// MustParsePath is ParsePath for literals known to be valid.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidName reports whether name may be used as a node name.
func ValidName(name string) error {
	switch {
	case name == "":
		return errors.New("empty name")
	case name == "." || name == "..":
		return fmt.Errorf("reserved name %q", name)
	case strings.Contains(name, Separator):
		return fmt.Errorf("name %q contains %q", name, Separator)
	}
	return nil
}

// String joins the path with the separator. The root renders as "".
func (p Path) String() string { return strings.Join(p, Separator) }

// IsRoot reports whether p addresses the root folder.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Base returns the final name, or "" for the root.
func (p Path) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Dir returns the parent path.
func (p Path) Dir() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Join returns a new path with name appended.
func (p Path) Join(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// HasPrefix reports whether q is p or an ancestor of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Equal reports whether p and q name the same node.
func (p Path) Equal(q Path) bool {
	return len(p) == len(q) && p.HasPrefix(q)
}
