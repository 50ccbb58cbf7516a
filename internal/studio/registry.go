package studio

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/colonyops/kiln/internal/core/eventbus"
	corekv "github.com/colonyops/kiln/internal/core/kv"
	"github.com/colonyops/kiln/internal/core/sandbox"
	"github.com/colonyops/kiln/pkg/kv"
	"github.com/colonyops/kiln/pkg/randid"
)

const checkpointNamespace = "workspace"

// RegistryOptions configures new workspaces.
type RegistryOptions struct {
	MaxLogEntries    int
	DefaultAutopilot bool
}

// Registry holds the live workspaces and checkpoints them to a KV store.
type Registry struct {
	workspaces  *kv.Map[string, *Workspace]
	checkpoints *corekv.Bucket[Snapshot]
	bus         *eventbus.EventBus
	opts        RegistryOptions
	log         zerolog.Logger

	// loaded is set after the first Load. Only that load interrupts tasks
	// found running; later loads see tasks another process is streaming.
	loaded atomic.Bool
}

// NewRegistry creates a registry. store may be nil, in which case workspaces
// only live in memory.
func NewRegistry(store corekv.Store, bus *eventbus.EventBus, opts RegistryOptions, logger zerolog.Logger) *Registry {
	if opts.MaxLogEntries <= 0 {
		opts.MaxLogEntries = sandbox.DefaultMaxEntries
	}

	r := &Registry{
		workspaces: kv.New[string, *Workspace](),
		bus:        bus,
		opts:       opts,
		log:        logger,
	}
	if store != nil {
		r.checkpoints = corekv.NewBucket[Snapshot](store, checkpointNamespace)
	}
	return r
}

// Load restores every checkpointed workspace and refreshes the ones already
// held, picking up changes made by other processes. An unreadable checkpoint
// is skipped; the returned error wraps ErrStorageFailure and the registry
// stays usable with whatever did load.
func (r *Registry) Load(ctx context.Context) error {
	if r.checkpoints == nil {
		return nil
	}
	interrupt := !r.loaded.Swap(true)

	ids, err := r.checkpoints.Keys(ctx)
	if err != nil {
		return fmt.Errorf("%w: list checkpoints: %w", ErrStorageFailure, err)
	}

	var errs []error
	for _, id := range ids {
		if ws, ok := r.workspaces.Load(id); ok {
			if err := r.Refresh(ctx, ws); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		snap, err := r.checkpoints.Get(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: read checkpoint %s: %w", ErrStorageFailure, id, err))
			continue
		}
		ws := restoreWorkspace(snap, r.opts.MaxLogEntries, interrupt)
		if r.workspaces.StoreNew(ws.ID, ws) {
			r.attach(ws)
		}
	}

	r.log.Debug().Int("count", r.workspaces.Len()).Int("failed", len(errs)).Msg("workspaces loaded")
	return errors.Join(errs...)
}

// Create adds a new empty workspace.
func (r *Registry) Create(ctx context.Context, name string) (*Workspace, error) {
	id := randid.Generate(8)
	if name == "" {
		name = id
	}
	if _, err := r.Resolve(name); err == nil {
		return nil, fmt.Errorf("workspace %q already exists", name)
	}

	ws := newWorkspace(id, name, r.opts.MaxLogEntries)
	ws.SetAutopilot(r.opts.DefaultAutopilot)
	r.attach(ws)

	if !r.workspaces.StoreNew(ws.ID, ws) {
		return nil, fmt.Errorf("workspace id %s collided, try again", id)
	}

	r.Checkpoint(ctx, ws)
	r.bus.PublishWorkspaceCreated(eventbus.WorkspaceCreatedPayload{WorkspaceID: ws.ID, Name: ws.Name})
	return ws, nil
}

// attach routes host-to-surface messages through the bus so whichever
// transport holds the surface connection can deliver them.
func (r *Registry) attach(ws *Workspace) {
	id := ws.ID
	ws.Sandbox.Attach(func(m sandbox.Message) error {
		r.bus.PublishSandboxCommand(eventbus.SandboxCommandPayload{WorkspaceID: id, Message: m})
		return nil
	})
}

// Get returns the workspace with the given id.
func (r *Registry) Get(id string) (*Workspace, error) {
	ws, ok := r.workspaces.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	return ws, nil
}

// Resolve finds a workspace by id, then by name.
func (r *Registry) Resolve(ref string) (*Workspace, error) {
	if ws, ok := r.workspaces.Load(ref); ok {
		return ws, nil
	}
	if ws, ok := r.workspaces.Find(func(ws *Workspace) bool { return ws.Name == ref }); ok {
		return ws, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, ref)
}

// List returns all workspaces, oldest first.
func (r *Registry) List() []*Workspace {
	list := r.workspaces.Values()
	slices.SortFunc(list, func(a, b *Workspace) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list
}

// Delete removes a workspace and its checkpoint.
func (r *Registry) Delete(ctx context.Context, id string) error {
	ws, ok := r.workspaces.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	ws.Sandbox.Attach(nil)

	if r.checkpoints != nil {
		if err := r.checkpoints.Delete(ctx, id); err != nil {
			return fmt.Errorf("%w: delete checkpoint %s: %w", ErrStorageFailure, id, err)
		}
	}

	r.bus.PublishWorkspaceDeleted(eventbus.WorkspaceDeletedPayload{WorkspaceID: id})
	return nil
}

// Refresh adopts the stored checkpoint of ws when another process wrote a
// newer one since this copy last read or wrote it.
func (r *Registry) Refresh(ctx context.Context, ws *Workspace) error {
	if r.checkpoints == nil {
		return nil
	}
	ws.saveMu.Lock()
	defer ws.saveMu.Unlock()
	return r.refresh(ctx, ws)
}

func (r *Registry) refresh(ctx context.Context, ws *Workspace) error {
	snap, ok, err := r.checkpoints.Lookup(ctx, ws.ID)
	if err != nil {
		return fmt.Errorf("%w: read checkpoint %s: %w", ErrStorageFailure, ws.ID, err)
	}
	if ok && ws.merge(snap) {
		r.log.Debug().Ctx(ctx).Str("workspace", ws.ID).Int("revision", snap.Revision).Msg("adopted newer checkpoint")
	}
	return nil
}

// Save writes a checkpoint of ws. A checkpoint written meanwhile by another
// process is merged in first, so its tree, tasks and autopilot flag are not
// overwritten.
func (r *Registry) Save(ctx context.Context, ws *Workspace) error {
	if r.checkpoints == nil {
		return nil
	}
	ws.saveMu.Lock()
	defer ws.saveMu.Unlock()

	refreshErr := r.refresh(ctx, ws)

	snap := ws.Snapshot()
	snap.Revision++
	if err := r.checkpoints.Put(ctx, ws.ID, snap); err != nil {
		return errors.Join(refreshErr, fmt.Errorf("%w: checkpoint %s: %w", ErrStorageFailure, ws.ID, err))
	}
	ws.setRevision(snap.Revision)
	return refreshErr
}

// Checkpoint is Save for callers that cannot act on a storage failure. The
// failure is logged and the in-memory workspace carries on.
func (r *Registry) Checkpoint(ctx context.Context, ws *Workspace) {
	if err := r.Save(ctx, ws); err != nil {
		r.log.Error().Ctx(ctx).Err(err).Str("workspace", ws.ID).Msg("workspace checkpoint failed")
	}
}
