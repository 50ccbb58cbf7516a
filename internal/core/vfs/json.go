package vfs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the tree as nested objects: folders are objects keyed
// by child name and files are strings.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodeFolder(t.root))
}

func encodeFolder(f *Folder) map[string]any {
	out := make(map[string]any, len(f.children))
	for name, child := range f.children {
		switch c := child.(type) {
		case *File:
			out[name] = c.content
		case *Folder:
			out[name] = encodeFolder(c)
		}
	}
	return out
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (t *Tree) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.root = NewFolder()
		return nil
	}

	root, err := decodeFolder(data, nil)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

func decodeFolder(data []byte, at Path) (*Folder, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode folder %q: %w", at.String(), err)
	}

	dir := NewFolder()
	for name, value := range raw {
		if err := ValidName(name); err != nil {
			return nil, fmt.Errorf("decode folder %q: %w", at.String(), err)
		}

		p := at.Join(name)
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 {
			return nil, fmt.Errorf("decode %q: empty value", p.String())
		}

		switch trimmed[0] {
		case '"':
			var content string
			if err := json.Unmarshal(trimmed, &content); err != nil {
				return nil, fmt.Errorf("decode file %q: %w", p.String(), err)
			}
			dir.children[name] = NewFile(content)
		case '{':
			sub, err := decodeFolder(trimmed, p)
			if err != nil {
				return nil, err
			}
			dir.children[name] = sub
		default:
			return nil, fmt.Errorf("decode %q: expected string or object", p.String())
		}
	}
	return dir, nil
}
