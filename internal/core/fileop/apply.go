package fileop

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/colonyops/kiln/internal/core/vfs"
)

// Failure records an operation that was skipped.
type Failure struct {
	Index int
	Op    Operation
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("operation %d (%s): %v", f.Index, f.Op, f.Err)
}

// Result is the outcome of applying a batch.
type Result struct {
	Tree     *vfs.Tree
	Applied  int
	Failures []Failure
}

// Applier applies batches best effort: an operation that cannot be applied
// is logged and skipped, and the rest of the batch proceeds. Each individual
// operation either fully succeeds or leaves the working tree untouched.
type Applier struct {
	log zerolog.Logger
}

// NewApplier creates an Applier that reports skipped operations to logger.
func NewApplier(logger zerolog.Logger) *Applier {
	return &Applier{log: logger}
}

// Apply returns the tree produced by applying batch, in order, to tree.
// tree itself is not modified.
func (a *Applier) Apply(tree *vfs.Tree, batch []Operation) Result {
	res := Result{Tree: tree}

	for i, op := range batch {
		ed := res.Tree.Edit()
		if err := applyOne(ed, op); err != nil {
			a.log.Warn().
				Err(err).
				Int("index", i).
				Str("operation", string(op.Kind)).
				Str("path", op.Path).
				Msg("skipping file operation")
			res.Failures = append(res.Failures, Failure{Index: i, Op: op, Err: err})
			continue
		}
		res.Tree = ed.Tree()
		res.Applied++
	}

	return res
}

func applyOne(ed *vfs.Editor, op Operation) error {
	if !op.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}
	p, err := vfs.ParsePath(op.Path)
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return fmt.Errorf("%w: empty path", vfs.ErrInvalidPath)
	}

	switch op.Kind {
	case KindCreateFile, KindUpdateFile:
		loc, err := ed.Resolve(p, true)
		if err != nil {
			return err
		}
		loc.Put(vfs.NewFile(op.Content))
		return nil

	case KindCreateFolder:
		loc, err := ed.Resolve(p, true)
		if err != nil {
			return err
		}
		switch loc.Existing.(type) {
		case nil:
			loc.Put(vfs.NewFolder())
		case *vfs.Folder:
		case *vfs.File:
			return fmt.Errorf("%w: %s is a file", vfs.ErrPathConflict, p)
		}
		return nil

	case KindDeleteFile, KindDeleteFolder:
		loc, err := ed.Resolve(p, false)
		if errors.Is(err, vfs.ErrPathNotFound) || errors.Is(err, vfs.ErrPathConflict) {
			// Nothing can exist below a missing folder or a file.
			return nil
		}
		if err != nil {
			return err
		}
		if loc.Existing != nil {
			loc.Remove()
		}
		return nil

	case KindRenameFile:
		return rename(ed, p, op.NewPath, vfs.KindFile)

	case KindRenameFolder:
		return rename(ed, p, op.NewPath, vfs.KindFolder)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}
}

// rename moves the node at from, with its whole subtree, to the destination.
// The node object itself is relocated.
func rename(ed *vfs.Editor, from vfs.Path, newPath string, want vfs.Kind) error {
	to, err := vfs.ParsePath(newPath)
	if err != nil {
		return err
	}
	if to.IsRoot() {
		return fmt.Errorf("%w: empty destination", vfs.ErrInvalidPath)
	}

	src, err := ed.Resolve(from, false)
	if err != nil {
		return err
	}
	if src.Existing == nil {
		return fmt.Errorf("%w: %s", vfs.ErrPathNotFound, from)
	}
	if kind := src.Existing.Kind(); kind != want {
		return fmt.Errorf("%w: %s is a %s", vfs.ErrPathConflict, from, kind)
	}
	if to.Equal(from) {
		return nil
	}
	if want == vfs.KindFolder && to.HasPrefix(from) {
		return fmt.Errorf("%w: cannot move %s into itself", vfs.ErrPathConflict, from)
	}

	node := src.Remove()

	dst, err := ed.Resolve(to, true)
	if err != nil {
		return err
	}
	if dst.Existing != nil && dst.Existing.Kind() != want {
		return fmt.Errorf("%w: %s is a %s", vfs.ErrPathConflict, to, dst.Existing.Kind())
	}
	dst.Put(node)
	return nil
}
