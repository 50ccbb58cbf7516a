package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/kiln/internal/core/eventbus"
	"github.com/colonyops/kiln/internal/core/fileop"
	"github.com/colonyops/kiln/internal/core/llm"
	"github.com/colonyops/kiln/internal/core/logging"
	"github.com/colonyops/kiln/internal/core/sandbox"
	"github.com/colonyops/kiln/internal/core/stream"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/core/vfs"
	"github.com/colonyops/kiln/internal/data/stores"
)

// History records published tree versions. *stores.HistoryStore satisfies it.
type History interface {
	Record(ctx context.Context, v stores.TreeVersion) error
	Get(ctx context.Context, workspaceID string, version int64) (stores.TreeVersion, error)
	Prune(ctx context.Context, workspaceID string, keep int) (int64, error)
}

var _ History = (*stores.HistoryStore)(nil)

// Options wires a Studio.
type Options struct {
	Registry  *Registry
	Generator llm.Generator
	Bus       *eventbus.EventBus
	Prompter  *Prompter
	// History is optional.
	History History
	// HistoryKeep is the number of versions kept per workspace, 0 keeps all.
	HistoryKeep int
	Logger      zerolog.Logger
}

// Studio drives tasks for the workspaces of a registry.
type Studio struct {
	reg     *Registry
	gen     llm.Generator
	bus     *eventbus.EventBus
	prompts *Prompter
	history History
	keep    int
	applier *fileop.Applier
	log     zerolog.Logger

	// rounds tracks autopilot rounds started in the background.
	rounds sync.WaitGroup
}

func New(opts Options) *Studio {
	return &Studio{
		reg:     opts.Registry,
		gen:     opts.Generator,
		bus:     opts.Bus,
		prompts: opts.Prompter,
		history: opts.History,
		keep:    opts.HistoryKeep,
		applier: fileop.NewApplier(opts.Logger),
		log:     opts.Logger,
	}
}

func (s *Studio) Registry() *Registry { return s.reg }

// refresh picks up a newer checkpoint of ws before it is changed. A storage
// failure is logged and the in-memory copy is used as is.
func (s *Studio) refresh(ctx context.Context, ws *Workspace) {
	if err := s.reg.Refresh(ctx, ws); err != nil {
		s.log.Warn().Ctx(ctx).Err(err).Msg("refresh workspace")
	}
}

func withIDs(ctx context.Context, wsID, taskID string) context.Context {
	ctx = logging.WithWorkspaceID(ctx, wsID)
	if taskID != "" {
		ctx = logging.WithTaskID(ctx, taskID)
	}
	return ctx
}

// Begin creates a running user task for prompt. The element currently
// selected in the preview is attached to the task and then cleared. Call Run
// to stream the round.
func (s *Studio) Begin(ctx context.Context, wsID, prompt string) (task.Task, error) {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return task.Task{}, err
	}

	t := task.New(prompt, task.OriginUser)
	t.Selection = ws.Sandbox.Selection()
	if err := ws.Tasks.Add(t); err != nil {
		return task.Task{}, err
	}

	ctx = withIDs(ctx, ws.ID, t.ID)
	if t.Selection != nil {
		if err := ws.Sandbox.ClearSelection(); err != nil {
			s.log.Warn().Ctx(ctx).Err(err).Msg("clear selection")
		}
	}

	s.bus.PublishTaskCreated(eventbus.TaskCreatedPayload{WorkspaceID: ws.ID, Task: t})
	s.reg.Checkpoint(ctx, ws)
	return t, nil
}

// Prompt creates a user task and streams it to completion.
func (s *Studio) Prompt(ctx context.Context, wsID, prompt string) (task.Task, error) {
	t, err := s.Begin(ctx, wsID, prompt)
	if err != nil {
		return task.Task{}, err
	}
	return s.Run(ctx, wsID, t.ID)
}

// Run streams the current round of a running task and settles it. A failed
// stream or an undecodable payload ends the task in the error state; that
// is reported through the returned task, not the error, which is reserved
// for lookup failures.
func (s *Studio) Run(ctx context.Context, wsID, taskID string) (task.Task, error) {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return task.Task{}, err
	}
	t, err := ws.Tasks.Get(taskID)
	if err != nil {
		return task.Task{}, err
	}
	if t.Status != task.StatusRunning {
		return t, fmt.Errorf("%w: task %s is %s", task.ErrInvalidTransition, t.ID, t.Status)
	}

	ctx = withIDs(ctx, ws.ID, t.ID)
	defer s.reg.Checkpoint(ctx, ws)

	tree, _ := ws.Tree()
	prompt, gctx, err := s.prompts.Request(tree, ws.Tasks.All(), t)
	if err != nil {
		return s.fail(ctx, ws, t.ID, err)
	}

	s.log.Info().Ctx(ctx).Str("origin", string(t.Origin)).Int("round", t.Round).Msg("round started")

	var framer stream.Framer
	for chunk, genErr := range s.gen.Generate(ctx, prompt, gctx) {
		if genErr != nil {
			return s.fail(ctx, ws, t.ID, fmt.Errorf("%w: %w", ErrStreamFailure, genErr))
		}
		frame := framer.Write(chunk)
		s.update(ctx, ws, t.ID, func(t *task.Task) error { return t.SetContent(frame.Content) })
	}

	frame := framer.Frame()
	payload, err := stream.Decode(frame)
	if err != nil {
		return s.fail(ctx, ws, t.ID, err)
	}

	a := task.Assistant{Text: frame.Content}
	switch payload.Kind {
	case stream.PayloadBlueprint:
		a.Blueprint = payload.Blueprint
		return s.settle(ctx, ws, t.ID, func(t *task.Task) error { return t.AwaitBlueprintApproval(a) })

	case stream.PayloadOperations:
		a.Operations = payload.Operations
		if t.Origin == task.OriginAutopilot {
			settled, err := s.settle(ctx, ws, t.ID, func(t *task.Task) error { return t.Complete(a) })
			if err == nil {
				s.apply(ctx, ws, settled.ID, a.Operations, "autopilot")
			}
			return settled, err
		}
		return s.settle(ctx, ws, t.ID, func(t *task.Task) error { return t.AwaitConfirmation(a) })

	default:
		return s.settle(ctx, ws, t.ID, func(t *task.Task) error { return t.Complete(a) })
	}
}

// Approve accepts a pending task. A pending batch is applied and the task
// completes. A pending blueprint restarts the task with a new round; the
// returned task is then running and must be passed to Run.
func (s *Studio) Approve(ctx context.Context, wsID, taskID string) (task.Task, error) {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return task.Task{}, err
	}
	ctx = withIDs(ctx, ws.ID, taskID)
	s.refresh(ctx, ws)
	defer s.reg.Checkpoint(ctx, ws)

	var wasBlueprint bool
	t, err := ws.Tasks.Update(taskID, func(t *task.Task) error {
		if t.Status == task.StatusPendingBlueprintApproval {
			wasBlueprint = true
			return t.Restart()
		}
		return t.Resolve(task.DecisionApproved)
	})
	if err != nil {
		return t, err
	}
	s.bus.PublishTaskUpdated(eventbus.TaskUpdatedPayload{WorkspaceID: ws.ID, Task: t})

	if wasBlueprint {
		s.log.Info().Ctx(ctx).Str("blueprint", t.Blueprint.Name).Msg("blueprint approved")
		return t, nil
	}

	s.apply(ctx, ws, t.ID, t.Assistant.Operations, "approved")
	return t, nil
}

// Reject discards a pending batch or blueprint. The task completes.
func (s *Studio) Reject(ctx context.Context, wsID, taskID string) (task.Task, error) {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return task.Task{}, err
	}
	ctx = withIDs(ctx, ws.ID, taskID)
	s.refresh(ctx, ws)
	defer s.reg.Checkpoint(ctx, ws)

	t, err := ws.Tasks.Update(taskID, func(t *task.Task) error { return t.Resolve(task.DecisionRejected) })
	if err != nil {
		return t, err
	}
	s.bus.PublishTaskUpdated(eventbus.TaskUpdatedPayload{WorkspaceID: ws.ID, Task: t})
	return t, nil
}

// Apply publishes a batch that did not come from a task, e.g. one supplied on
// the command line.
func (s *Studio) Apply(ctx context.Context, wsID string, ops []fileop.Operation) (fileop.Result, int, error) {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return fileop.Result{}, 0, err
	}
	ctx = withIDs(ctx, ws.ID, "")
	defer s.reg.Checkpoint(ctx, ws)

	res, version := s.apply(ctx, ws, "", ops, "manual")
	return res, version, nil
}

// Restore republishes an earlier tree version as a new version.
func (s *Studio) Restore(ctx context.Context, wsID string, version int) (int, error) {
	if s.history == nil {
		return 0, errors.New("tree history is not available")
	}
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return 0, err
	}
	ctx = withIDs(ctx, ws.ID, "")
	defer s.reg.Checkpoint(ctx, ws)

	old, err := s.history.Get(ctx, ws.ID, int64(version))
	if err != nil {
		return 0, fmt.Errorf("load version %d: %w", version, err)
	}

	s.refresh(ctx, ws)
	tree, next := ws.publish(func(*vfs.Tree) *vfs.Tree { return old.Tree })
	s.reg.Checkpoint(ctx, ws)
	s.published(ctx, ws, tree, next, nil, "", fmt.Sprintf("restore v%d", version))
	return next, nil
}

// apply publishes ops on top of the latest tree of ws, including one
// checkpointed by another process. Failed operations are skipped and
// reported in the result.
func (s *Studio) apply(ctx context.Context, ws *Workspace, taskID string, ops []fileop.Operation, reason string) (fileop.Result, int) {
	s.refresh(ctx, ws)

	var res fileop.Result
	tree, version := ws.publish(func(current *vfs.Tree) *vfs.Tree {
		res = s.applier.Apply(current, ops)
		return res.Tree
	})
	s.reg.Checkpoint(ctx, ws)

	s.log.Info().Ctx(ctx).
		Int("version", version).
		Int("applied", res.Applied).
		Int("failed", len(res.Failures)).
		Msg("tree published")

	s.published(ctx, ws, tree, version, res.Failures, taskID, reason)
	return res, version
}

func (s *Studio) published(ctx context.Context, ws *Workspace, tree *vfs.Tree, version int, failures []fileop.Failure, taskID, reason string) {
	if s.history != nil {
		err := s.history.Record(ctx, stores.TreeVersion{
			WorkspaceID: ws.ID,
			Version:     int64(version),
			Reason:      reason,
			TaskID:      taskID,
			Tree:        tree,
		})
		if err != nil {
			s.log.Error().Ctx(ctx).Err(fmt.Errorf("%w: %w", ErrStorageFailure, err)).Msg("record tree version")
		} else if _, err := s.history.Prune(ctx, ws.ID, s.keep); err != nil {
			s.log.Warn().Ctx(ctx).Err(err).Msg("prune tree history")
		}
	}

	s.bus.PublishTreePublished(eventbus.TreePublishedPayload{
		WorkspaceID: ws.ID,
		Version:     version,
		Tree:        tree,
		Failures:    failures,
	})
}

func (s *Studio) update(ctx context.Context, ws *Workspace, id string, fn func(*task.Task) error) {
	t, err := ws.Tasks.Update(id, fn)
	if err != nil {
		s.log.Warn().Ctx(ctx).Err(err).Msg("task update rejected")
		return
	}
	s.bus.PublishTaskUpdated(eventbus.TaskUpdatedPayload{WorkspaceID: ws.ID, Task: t})
}

func (s *Studio) settle(ctx context.Context, ws *Workspace, id string, fn func(*task.Task) error) (task.Task, error) {
	t, err := ws.Tasks.Update(id, fn)
	if err != nil {
		return t, err
	}
	s.log.Info().Ctx(ctx).Str("status", string(t.Status)).Msg("round finished")
	s.bus.PublishTaskUpdated(eventbus.TaskUpdatedPayload{WorkspaceID: ws.ID, Task: t})
	return t, nil
}

func (s *Studio) fail(ctx context.Context, ws *Workspace, id string, cause error) (task.Task, error) {
	s.log.Error().Ctx(ctx).Err(cause).Msg("round failed")
	return s.settle(ctx, ws, id, func(t *task.Task) error { return t.Fail(cause.Error()) })
}

// Autopilot starts an autopilot round in every workspace that has autopilot
// enabled and no autopilot task running. Rounds run in the background, so a
// slow workspace does not hold up the others; Wait blocks until they settle.
// Checkpoints are reloaded first so workspaces and autopilot switches
// changed by other processes are seen.
func (s *Studio) Autopilot(ctx context.Context) {
	if err := s.reg.Load(ctx); err != nil {
		s.log.Warn().Err(err).Msg("reload workspaces")
	}

	for _, ws := range s.reg.List() {
		if !ws.Autopilot() {
			continue
		}

		tree, _ := ws.Tree()
		prompt, err := s.prompts.Autopilot(tree, ws.Sandbox.Logs())
		if err != nil {
			s.log.Error().Ctx(withIDs(ctx, ws.ID, "")).Err(err).Msg("autopilot prompt")
			continue
		}

		t := task.New(prompt, task.OriginAutopilot)
		added, err := ws.Tasks.AddIfNoneRunning(t)
		if err != nil || !added {
			continue
		}
		s.bus.PublishTaskCreated(eventbus.TaskCreatedPayload{WorkspaceID: ws.ID, Task: t})

		s.rounds.Add(1)
		go func() {
			defer s.rounds.Done()
			if _, err := s.Run(ctx, ws.ID, t.ID); err != nil {
				s.log.Error().Ctx(withIDs(ctx, ws.ID, t.ID)).Err(err).Msg("autopilot round")
			}
		}()
	}
}

// Wait blocks until every autopilot round started so far has settled.
func (s *Studio) Wait() {
	s.rounds.Wait()
}

// SetAutopilot switches autopilot mode for a workspace.
func (s *Studio) SetAutopilot(ctx context.Context, wsID string, enabled bool) error {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return err
	}
	ctx = withIDs(ctx, ws.ID, "")
	s.refresh(ctx, ws)
	ws.SetAutopilot(enabled)
	s.reg.Checkpoint(ctx, ws)
	return nil
}

// SetTab switches the workspace's active panel.
func (s *Studio) SetTab(ctx context.Context, wsID string, tab sandbox.Tab) error {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return err
	}
	if err := ws.Sandbox.SetActiveTab(tab); err != nil {
		return err
	}
	s.reg.Checkpoint(withIDs(ctx, ws.ID, ""), ws)
	return nil
}

// Receive applies a message from a workspace's preview surface.
func (s *Studio) Receive(ctx context.Context, wsID string, m sandbox.Message) error {
	ws, err := s.reg.Get(wsID)
	if err != nil {
		return err
	}

	upd, err := ws.Sandbox.Receive(m)
	if err != nil {
		return err
	}

	if upd.Entry != nil {
		s.bus.PublishConsoleLogged(eventbus.ConsoleLoggedPayload{WorkspaceID: ws.ID, Entry: *upd.Entry, Raised: upd.Raised})
	}
	if upd.Selection != nil {
		s.bus.PublishElementSelected(eventbus.ElementSelectedPayload{WorkspaceID: ws.ID, Selection: *upd.Selection})
	}
	if upd.Selection != nil || upd.Raised {
		s.reg.Checkpoint(withIDs(ctx, ws.ID, ""), ws)
	}
	return nil
}
