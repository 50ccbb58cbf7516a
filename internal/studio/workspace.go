// Package studio owns kiln's workspaces and drives tasks through their
// lifecycle: streaming a generation, decoding its payload and publishing the
// resulting tree.
package studio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/colonyops/kiln/internal/core/sandbox"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/core/vfs"
)

var (
	// ErrWorkspaceNotFound is returned when no workspace matches an id or name.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrStreamFailure marks a task that failed because the generator failed.
	ErrStreamFailure = errors.New("stream failure")
	// ErrStorageFailure marks a checkpoint that could not be written. The
	// in-memory workspace stays authoritative.
	ErrStorageFailure = errors.New("storage failure")
)

// Workspace is one project: its published tree, its tasks and the host side
// of its preview sandbox.
type Workspace struct {
	ID        string
	Name      string
	CreatedAt time.Time

	Tasks   *task.List
	Sandbox *sandbox.Host

	autopilot atomic.Bool

	// mu is the publish lock. Every new version is derived from the latest
	// published one while it is held.
	mu      sync.RWMutex
	tree    *vfs.Tree
	version int
	// revision is the checkpoint revision this copy last read or wrote.
	revision int

	// saveMu serializes checkpoint reads and writes of this workspace.
	saveMu sync.Mutex
}

func newWorkspace(id, name string, maxEntries int) *Workspace {
	return &Workspace{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		Tasks:     task.NewList(),
		Sandbox:   sandbox.NewHost(maxEntries, nil),
		tree:      vfs.New(),
	}
}

// Tree returns the published tree and its version. The tree is immutable.
func (w *Workspace) Tree() (*vfs.Tree, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tree, w.version
}

func (w *Workspace) Autopilot() bool { return w.autopilot.Load() }

func (w *Workspace) SetAutopilot(enabled bool) { w.autopilot.Store(enabled) }

// publish derives a new tree from the latest published one and makes it
// current. fn must not retain or mutate its argument.
func (w *Workspace) publish(fn func(current *vfs.Tree) *vfs.Tree) (*vfs.Tree, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tree = fn(w.tree)
	w.version++
	return w.tree, w.version
}

// Snapshot is the persisted form of a workspace. Revision counts checkpoint
// writes from any process; Version counts published trees.
type Snapshot struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"createdAt"`
	Revision  int                `json:"revision"`
	Version   int                `json:"version"`
	Tree      *vfs.Tree          `json:"tree"`
	Tasks     []task.Task        `json:"tasks"`
	Autopilot bool               `json:"autopilot"`
	Logs      []sandbox.LogEntry `json:"logs,omitempty"`
	Selection *sandbox.Selection `json:"selection,omitempty"`
	ActiveTab sandbox.Tab        `json:"activeTab,omitempty"`
}

// Snapshot captures the workspace for checkpointing.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.RLock()
	tree, version, revision := w.tree, w.version, w.revision
	w.mu.RUnlock()

	return Snapshot{
		ID:        w.ID,
		Name:      w.Name,
		CreatedAt: w.CreatedAt,
		Revision:  revision,
		Version:   version,
		Tree:      tree,
		Tasks:     w.Tasks.All(),
		Autopilot: w.Autopilot(),
		Logs:      w.Sandbox.Logs(),
		Selection: w.Sandbox.Selection(),
		ActiveTab: w.Sandbox.ActiveTab(),
	}
}

// merge adopts a checkpoint written by another process and reports whether
// it was newer than anything this copy has seen. A newer published tree
// replaces the local one; tasks are merged by last update.
func (w *Workspace) merge(s Snapshot) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s.Revision <= w.revision {
		return false
	}
	w.revision = s.Revision
	if s.Version > w.version && s.Tree != nil {
		w.tree, w.version = s.Tree, s.Version
	}
	w.autopilot.Store(s.Autopilot)
	w.Tasks.Merge(s.Tasks)
	return true
}

func (w *Workspace) setRevision(rev int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.revision = max(w.revision, rev)
}

// restoreWorkspace rebuilds a workspace from a checkpoint. With interrupt
// set, tasks that were streaming when the checkpoint was written are marked
// as failed; their update time is kept so a process still running them wins
// a later merge.
func restoreWorkspace(s Snapshot, maxEntries int, interrupt bool) *Workspace {
	w := newWorkspace(s.ID, s.Name, maxEntries)
	w.CreatedAt = s.CreatedAt
	w.revision = s.Revision
	w.version = s.Version
	if s.Tree != nil {
		w.tree = s.Tree
	}
	w.autopilot.Store(s.Autopilot)

	tasks := make([]task.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if interrupt && t.Status == task.StatusRunning {
			updated := t.UpdatedAt
			_ = t.Fail("interrupted")
			t.UpdatedAt = updated
		}
		tasks = append(tasks, t)
	}
	w.Tasks = task.NewList(tasks...)

	w.Sandbox.Restore(s.Logs)
	w.Sandbox.RestoreSelection(s.Selection)
	if s.ActiveTab != "" {
		_ = w.Sandbox.SetActiveTab(s.ActiveTab)
	}
	return w
}
