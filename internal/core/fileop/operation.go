// Package fileop defines the structured file operations a model may request
// and applies batches of them to a vfs.Tree.
package fileop

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when applying an operation whose kind is not
// one of the known variants.
var ErrUnknownKind = errors.New("unknown operation kind")

// Kind identifies an operation variant. New kinds must be added together
// with a case in applyOne.
type Kind string

const (
	KindCreateFile   Kind = "CREATE_FILE"
	KindUpdateFile   Kind = "UPDATE_FILE"
	KindDeleteFile   Kind = "DELETE_FILE"
	KindCreateFolder Kind = "CREATE_FOLDER"
	KindDeleteFolder Kind = "DELETE_FOLDER"
	KindRenameFile   Kind = "RENAME_FILE"
	KindRenameFolder Kind = "RENAME_FOLDER"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindCreateFile, KindUpdateFile, KindDeleteFile,
		KindCreateFolder, KindDeleteFolder,
		KindRenameFile, KindRenameFolder:
		return true
	default:
		return false
	}
}

// IsRename reports whether the kind carries a destination path.
func (k Kind) IsRename() bool {
	return k == KindRenameFile || k == KindRenameFolder
}

// Operation is one immutable step of a batch. Content is used by the
// create/update file kinds and NewPath by the rename kinds. Kind is decoded
// as is; an unknown kind fails only its own step when applied.
type Operation struct {
	Kind        Kind   `json:"operation"`
	Path        string `json:"path"`
	Content     string `json:"content,omitempty"`
	NewPath     string `json:"newPath,omitempty"`
	Description string `json:"description,omitempty"`
}

// String renders a short human readable summary, e.g. "CREATE_FILE src/x.tsx".
func (o Operation) String() string {
	if o.Kind.IsRename() {
		return fmt.Sprintf("%s %s -> %s", o.Kind, o.Path, o.NewPath)
	}
	return fmt.Sprintf("%s %s", o.Kind, o.Path)
}

func CreateFile(path, content string) Operation {
	return Operation{Kind: KindCreateFile, Path: path, Content: content}
}

func UpdateFile(path, content string) Operation {
	return Operation{Kind: KindUpdateFile, Path: path, Content: content}
}

func DeleteFile(path string) Operation {
	return Operation{Kind: KindDeleteFile, Path: path}
}

func CreateFolder(path string) Operation {
	return Operation{Kind: KindCreateFolder, Path: path}
}

func DeleteFolder(path string) Operation {
	return Operation{Kind: KindDeleteFolder, Path: path}
}

func RenameFile(path, newPath string) Operation {
	return Operation{Kind: KindRenameFile, Path: path, NewPath: newPath}
}

func RenameFolder(path, newPath string) Operation {
	return Operation{Kind: KindRenameFolder, Path: path, NewPath: newPath}
}

// WithDescription returns a copy of o carrying a description.
func (o Operation) WithDescription(desc string) Operation {
	o.Description = desc
	return o
}
