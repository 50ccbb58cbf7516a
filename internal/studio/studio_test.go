package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/colonyops/kiln/internal/core/config"
	"github.com/colonyops/kiln/internal/core/eventbus"
	"github.com/colonyops/kiln/internal/core/eventbus/testbus"
	"github.com/colonyops/kiln/internal/core/fileop"
	corekv "github.com/colonyops/kiln/internal/core/kv"
	"github.com/colonyops/kiln/internal/core/llm"
	"github.com/colonyops/kiln/internal/core/sandbox"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/core/vfs"
	"github.com/colonyops/kiln/internal/data/db"
	"github.com/colonyops/kiln/internal/data/stores"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const opsReply = "Adding a heading.\n---JSON_OPERATIONS---\n```json\n" +
	`{"operations":[{"operation":"CREATE_FILE","path":"index.html","content":"<h1>hi</h1>"},` +
	`{"operation":"CREATE_FILE","path":"index.html/bad","content":"x"}]}` + "\n```"

const blueprintReply = "Here is a plan.\n---JSON_BLUEPRINT---\n" +
	`{"name":"Todo","features":[{"title":"Lists","description":"Track items"}],` +
	`"styleGuidelines":[{"category":"color","description":"Warm","colors":["#ff6600"]}]}`

type harness struct {
	studio *Studio
	ws     *Workspace
	bus    *testbus.Bus
	script *llm.Script
}

func newHarness(t *testing.T, gen llm.Generator) harness {
	t.Helper()
	bus := testbus.New(t)
	reg := NewRegistry(nil, bus.EventBus, RegistryOptions{}, zerolog.Nop())
	ws, err := reg.Create(context.Background(), "demo")
	require.NoError(t, err)

	script, _ := gen.(*llm.Script)
	return harness{
		studio: New(Options{
			Registry:  reg,
			Generator: gen,
			Bus:       bus.EventBus,
			Prompter:  NewPrompter(config.DefaultPrompts(), nil),
			Logger:    zerolog.Nop(),
		}),
		ws:     ws,
		bus:    bus,
		script: script,
	}
}

func scripted(t *testing.T, replies ...llm.Reply) harness {
	t.Helper()
	return newHarness(t, llm.NewScript(replies...))
}

func TestStudio_UserOperationsAwaitConfirmation(t *testing.T) {
	h := scripted(t, llm.Reply{Text: opsReply, ChunkSize: 7})
	ctx := context.Background()

	got, err := h.studio.Prompt(ctx, h.ws.ID, "add a heading")
	require.NoError(t, err)

	assert.Equal(t, task.StatusPendingConfirmation, got.Status)
	assert.Equal(t, "Adding a heading.\n", got.Assistant.Text)
	require.Len(t, got.Assistant.Operations, 2)

	tree, version := h.ws.Tree()
	assert.Zero(t, version, "nothing is published before approval")
	assert.Empty(t, tree.Files())

	approved, err := h.studio.Approve(ctx, h.ws.ID, got.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, approved.Status)
	assert.Equal(t, task.DecisionApproved, approved.Decision)

	tree, version = h.ws.Tree()
	assert.Equal(t, 1, version)
	assert.Equal(t, map[string]string{"index.html": "<h1>hi</h1>"}, tree.Files())

	require.True(t, h.bus.WaitFor(eventbus.EventTreePublished, time.Second))
	pub := h.bus.Payloads(eventbus.EventTreePublished)[0].(eventbus.TreePublishedPayload)
	require.Len(t, pub.Failures, 1, "the invalid operation is skipped and reported")
	assert.Equal(t, 1, pub.Failures[0].Index)
}

func TestStudio_RejectDiscardsBatch(t *testing.T) {
	h := scripted(t, llm.Reply{Text: opsReply})
	ctx := context.Background()

	got, err := h.studio.Prompt(ctx, h.ws.ID, "add a heading")
	require.NoError(t, err)

	rejected, err := h.studio.Reject(ctx, h.ws.ID, got.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, rejected.Status)
	assert.Equal(t, task.DecisionRejected, rejected.Decision)

	_, version := h.ws.Tree()
	assert.Zero(t, version)

	_, err = h.studio.Approve(ctx, h.ws.ID, got.ID)
	require.ErrorIs(t, err, task.ErrInvalidTransition, "a resolved task cannot be approved")
}

func TestStudio_StreamingNeverShowsMarker(t *testing.T) {
	h := scripted(t, llm.Reply{Chunks: []string{"Adding", " it.\n", "---JSON_OPERATIONS---\n", `{"operations":[]}`}})

	got, err := h.studio.Prompt(context.Background(), h.ws.ID, "go")
	require.NoError(t, err)
	assert.Equal(t, task.StatusPendingConfirmation, got.Status)

	require.Eventually(t, func() bool {
		return len(h.bus.Payloads(eventbus.EventTaskUpdated)) >= 4
	}, time.Second, 5*time.Millisecond)

	for _, p := range h.bus.Payloads(eventbus.EventTaskUpdated) {
		text := p.(eventbus.TaskUpdatedPayload).Task.Assistant.Text
		assert.NotContains(t, text, "---JSON")
		assert.NotContains(t, text, "operations")
	}
}

func TestStudio_NoPayloadCompletes(t *testing.T) {
	h := scripted(t, llm.Reply{Text: "Just chatting."})

	got, err := h.studio.Prompt(context.Background(), h.ws.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, "Just chatting.", got.Assistant.Text)
}

func TestStudio_DecodeFailureIsFatal(t *testing.T) {
	h := scripted(t, llm.Reply{Text: "Oops\n---JSON_OPERATIONS---\n{\"operations\": [ nope"})

	got, err := h.studio.Prompt(context.Background(), h.ws.ID, "break")
	require.NoError(t, err)
	assert.Equal(t, task.StatusError, got.Status)
	assert.Contains(t, got.Error, "payload parse failure")

	_, version := h.ws.Tree()
	assert.Zero(t, version)
}

func TestStudio_StreamFailureIsFatal(t *testing.T) {
	h := scripted(t, llm.Reply{Text: "partial", Error: "quota exceeded"})

	got, err := h.studio.Prompt(context.Background(), h.ws.ID, "go")
	require.NoError(t, err)
	assert.Equal(t, task.StatusError, got.Status)
	assert.Contains(t, got.Error, "stream failure")
	assert.Contains(t, got.Error, "quota exceeded")
}

func TestStudio_BlueprintApprovalStartsNewRound(t *testing.T) {
	h := scripted(t,
		llm.Reply{Text: blueprintReply},
		llm.Reply{Text: "Building.\n---JSON_OPERATIONS---\n" +
			`{"operations":[{"operation":"CREATE_FILE","path":"app.js","content":"todo()"}]}`},
	)
	ctx := context.Background()

	got, err := h.studio.Prompt(ctx, h.ws.ID, "make a todo app")
	require.NoError(t, err)
	require.Equal(t, task.StatusPendingBlueprintApproval, got.Status)
	require.NotNil(t, got.Assistant.Blueprint)
	assert.Equal(t, "Todo", got.Assistant.Blueprint.Name)

	_, version := h.ws.Tree()
	assert.Zero(t, version, "a blueprint never mutates the tree")

	restarted, err := h.studio.Approve(ctx, h.ws.ID, got.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, restarted.Status)
	assert.Equal(t, got.ID, restarted.ID)
	assert.Equal(t, 2, restarted.Round)

	final, err := h.studio.Run(ctx, h.ws.ID, restarted.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPendingConfirmation, final.Status)
	assert.Equal(t, got.ID, final.ID)

	calls := h.script.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, `"name": "Todo"`)
	assert.Contains(t, calls[1].Prompt, "#ff6600")
	assert.Contains(t, calls[1].Context.System, "# Todo", "the approved blueprint is part of the system prompt")
}

func TestStudio_RejectBlueprint(t *testing.T) {
	h := scripted(t, llm.Reply{Text: blueprintReply})
	ctx := context.Background()

	got, err := h.studio.Prompt(ctx, h.ws.ID, "make a todo app")
	require.NoError(t, err)

	rejected, err := h.studio.Reject(ctx, h.ws.ID, got.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, rejected.Status)
	assert.Len(t, h.script.Calls(), 1)
}

func TestStudio_SelectionIsConsumed(t *testing.T) {
	h := scripted(t, llm.Reply{Text: "Done."}, llm.Reply{Text: "Done again."})
	ctx := context.Background()

	sel := sandbox.Selection{Selector: "#hero > h1", Text: "Welcome"}
	require.NoError(t, h.studio.Receive(ctx, h.ws.ID, sandbox.ElementSelected{Selection: sel}))
	h.bus.AssertPublished(t, eventbus.EventElementSelected)

	got, err := h.studio.Prompt(ctx, h.ws.ID, "make it red")
	require.NoError(t, err)
	require.NotNil(t, got.Selection)
	assert.Equal(t, sel, *got.Selection)
	assert.Nil(t, h.ws.Sandbox.Selection())
	assert.Contains(t, h.script.Calls()[0].Prompt, "#hero > h1")

	second, err := h.studio.Prompt(ctx, h.ws.ID, "and bigger")
	require.NoError(t, err)
	assert.Nil(t, second.Selection)
	assert.NotContains(t, h.script.Calls()[1].Prompt, "#hero")

	require.True(t, h.bus.WaitFor(eventbus.EventSandboxCommand, time.Second))
	cmd := h.bus.Payloads(eventbus.EventSandboxCommand)[0].(eventbus.SandboxCommandPayload)
	assert.Equal(t, sandbox.ClearSelection{}, cmd.Message)
}

func TestStudio_HistoryIsReplayed(t *testing.T) {
	h := scripted(t, llm.Reply{Text: "First answer."}, llm.Reply{Text: "Second answer."})
	ctx := context.Background()

	_, err := h.studio.Prompt(ctx, h.ws.ID, "first question")
	require.NoError(t, err)
	_, err = h.studio.Prompt(ctx, h.ws.ID, "second question")
	require.NoError(t, err)

	calls := h.script.Calls()
	assert.Empty(t, calls[0].Context.History)
	assert.Equal(t, []llm.Turn{
		{Role: llm.RoleUser, Text: "first question"},
		{Role: llm.RoleModel, Text: "First answer."},
	}, calls[1].Context.History)
}

func TestStudio_ConsoleErrorRaisesConsole(t *testing.T) {
	h := scripted(t)
	ctx := context.Background()

	require.NoError(t, h.studio.Receive(ctx, h.ws.ID, sandbox.Console{Level: sandbox.LevelError, Message: "boom"}))
	require.True(t, h.bus.WaitFor(eventbus.EventConsoleLogged, time.Second))

	p := h.bus.Payloads(eventbus.EventConsoleLogged)[0].(eventbus.ConsoleLoggedPayload)
	assert.True(t, p.Raised)
	assert.Equal(t, "boom", p.Entry.Message)
	assert.Equal(t, sandbox.TabConsole, h.ws.Sandbox.ActiveTab())

	err := h.studio.Receive(ctx, h.ws.ID, sandbox.ToggleSelector{Enabled: true})
	require.ErrorIs(t, err, sandbox.ErrUnknownMessage)
}

func TestStudio_ConcurrentAppliesDeriveFromLatest(t *testing.T) {
	h := scripted(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.studio.Apply(ctx, h.ws.ID, []fileop.Operation{
				fileop.CreateFile("files/"+string(rune('a'+i))+".txt", "x"),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tree, version := h.ws.Tree()
	assert.Equal(t, 20, version)
	assert.Len(t, tree.Files(), 20, "no publish is lost")
}

func TestStudio_UnknownWorkspace(t *testing.T) {
	h := scripted(t)
	_, err := h.studio.Prompt(context.Background(), "nope", "hi")
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

// gate blocks every generation until released.
type gate struct {
	release chan struct{}
	reply   string
}

func (g *gate) Generate(ctx context.Context, _ string, _ llm.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		select {
		case <-g.release:
		case <-ctx.Done():
			yield("", ctx.Err())
			return
		}
		yield(g.reply, nil)
	}
}

func TestStudio_AutopilotAppliesAndIsSingleFlight(t *testing.T) {
	g := &gate{
		release: make(chan struct{}),
		reply: "Tidying.\n---JSON_OPERATIONS---\n" +
			`{"operations":[{"operation":"CREATE_FILE","path":"style.css","content":"body{}"}]}`,
	}
	h := newHarness(t, g)
	ctx := context.Background()

	// Off by default.
	h.studio.Autopilot(ctx)
	h.studio.Wait()
	assert.Zero(t, h.ws.Tasks.Len())

	h.ws.SetAutopilot(true)

	// The tick returns while its round is still blocked in the generator.
	h.studio.Autopilot(ctx)
	require.Eventually(t, func() bool {
		return len(h.ws.Tasks.Running(task.OriginAutopilot)) == 1
	}, time.Second, 5*time.Millisecond)

	// A second trigger while one is running creates nothing.
	h.studio.Autopilot(ctx)
	assert.Equal(t, 1, h.ws.Tasks.Len())

	close(g.release)
	h.studio.Wait()

	all := h.ws.Tasks.All()
	require.Len(t, all, 1)
	assert.Equal(t, task.StatusCompleted, all[0].Status)
	assert.Equal(t, task.OriginAutopilot, all[0].Origin)

	tree, version := h.ws.Tree()
	assert.Equal(t, 1, version, "autopilot batches apply without confirmation")
	assert.Equal(t, map[string]string{"style.css": "body{}"}, tree.Files())
}

func TestStudio_AutopilotQuotesConsoleErrors(t *testing.T) {
	h := scripted(t, llm.Reply{Text: "Nothing to do."})
	ctx := context.Background()
	h.ws.SetAutopilot(true)

	require.NoError(t, h.studio.Receive(ctx, h.ws.ID, sandbox.Console{Level: sandbox.LevelError, Message: "x is not defined"}))
	require.NoError(t, h.studio.Receive(ctx, h.ws.ID, sandbox.Console{Level: sandbox.LevelLog, Message: "ready"}))

	h.studio.Autopilot(ctx)
	h.studio.Wait()

	calls := h.script.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "- x is not defined")
	assert.NotContains(t, calls[0].Prompt, "ready")
}

func openDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestStudio_RestoreFromHistory(t *testing.T) {
	bus := testbus.New(t)
	database := openDB(t)
	reg := NewRegistry(stores.NewKVStore(database), bus.EventBus, RegistryOptions{}, zerolog.Nop())
	ws, err := reg.Create(context.Background(), "demo")
	require.NoError(t, err)

	st := New(Options{
		Registry:  reg,
		Generator: llm.NewScript(),
		Bus:       bus.EventBus,
		Prompter:  NewPrompter(config.DefaultPrompts(), nil),
		History:   stores.NewHistoryStore(database),
		Logger:    zerolog.Nop(),
	})
	ctx := context.Background()

	_, _, err = st.Apply(ctx, ws.ID, []fileop.Operation{fileop.CreateFile("a.txt", "one")})
	require.NoError(t, err)
	_, _, err = st.Apply(ctx, ws.ID, []fileop.Operation{fileop.UpdateFile("a.txt", "two")})
	require.NoError(t, err)

	version, err := st.Restore(ctx, ws.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	tree, _ := ws.Tree()
	got, err := tree.ReadFile(vfs.MustParsePath("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	_, err = st.Restore(ctx, ws.ID, 42)
	require.Error(t, err)
}

func TestRegistry_CheckpointRoundTrip(t *testing.T) {
	bus := testbus.New(t)
	store := stores.NewKVStore(openDB(t))
	ctx := context.Background()

	reg := NewRegistry(store, bus.EventBus, RegistryOptions{MaxLogEntries: 10}, zerolog.Nop())
	ws, err := reg.Create(ctx, "demo")
	require.NoError(t, err)
	ws.SetAutopilot(true)

	ws.publish(func(cur *vfs.Tree) *vfs.Tree {
		return fileop.NewApplier(zerolog.Nop()).Apply(cur, []fileop.Operation{fileop.CreateFile("a.txt", "a")}).Tree
	})
	done := task.New("finished", task.OriginUser)
	require.NoError(t, done.Complete(task.Assistant{Text: "ok"}))
	require.NoError(t, ws.Tasks.Add(done))
	streaming := task.New("streaming", task.OriginUser)
	require.NoError(t, ws.Tasks.Add(streaming))
	_, err = ws.Sandbox.Receive(sandbox.Console{Level: sandbox.LevelWarn, Message: "careful"})
	require.NoError(t, err)
	require.NoError(t, ws.Sandbox.SetActiveTab(sandbox.TabCode))
	require.NoError(t, reg.Save(ctx, ws))

	reloaded := NewRegistry(store, bus.EventBus, RegistryOptions{MaxLogEntries: 10}, zerolog.Nop())
	require.NoError(t, reloaded.Load(ctx))

	got, err := reloaded.Resolve("demo")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)
	assert.True(t, got.Autopilot())

	tree, version := got.Tree()
	assert.Equal(t, 1, version)
	assert.Equal(t, map[string]string{"a.txt": "a"}, tree.Files())

	tasks := got.Tasks.All()
	require.Len(t, tasks, 2)
	assert.Equal(t, task.StatusCompleted, tasks[0].Status)
	assert.Equal(t, task.StatusError, tasks[1].Status, "a task streaming at checkpoint time cannot resume")
	assert.Equal(t, "interrupted", tasks[1].Error)

	logs := got.Sandbox.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "careful", logs[0].Message)
	assert.Equal(t, sandbox.TabCode, got.Sandbox.ActiveTab())
}

func TestRegistry_CreateDuplicateAndDelete(t *testing.T) {
	bus := testbus.New(t)
	reg := NewRegistry(nil, bus.EventBus, RegistryOptions{}, zerolog.Nop())
	ctx := context.Background()

	ws, err := reg.Create(ctx, "demo")
	require.NoError(t, err)
	_, err = reg.Create(ctx, "demo")
	require.Error(t, err)

	unnamed, err := reg.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, unnamed.ID, unnamed.Name)

	assert.Len(t, reg.List(), 2)

	require.NoError(t, reg.Delete(ctx, ws.ID))
	require.ErrorIs(t, reg.Delete(ctx, ws.ID), ErrWorkspaceNotFound)
	_, err = reg.Resolve("demo")
	require.ErrorIs(t, err, ErrWorkspaceNotFound)

	bus.AssertPublished(t, eventbus.EventWorkspaceDeleted)
}

func TestRenderTree(t *testing.T) {
	tree := fileop.NewApplier(zerolog.Nop()).Apply(vfs.New(), []fileop.Operation{
		fileop.CreateFile("src/app.js", "run()\n"),
		fileop.CreateFolder("assets"),
	}).Tree

	got := RenderTree(tree)
	assert.True(t, strings.HasPrefix(got, "assets/\nsrc/\nsrc/app.js\n```\nrun()\n```"), got)
	assert.Empty(t, RenderTree(vfs.New()))
}

// flakyStore is an in-memory kv.Store whose reads and writes can be made to
// fail.
type flakyStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	failGet  map[string]bool
	failSet  bool
	failKeys bool
}

var _ corekv.Store = (*flakyStore)(nil)

var errDisk = errors.New("disk I/O error")

func newFlakyStore() *flakyStore {
	return &flakyStore{data: map[string][]byte{}, failGet: map[string]bool{}}
}

func (f *flakyStore) Get(_ context.Context, key string, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet[key] {
		return errDisk
	}
	raw, ok := f.data[key]
	if !ok {
		return sql.ErrNoRows
	}
	return json.Unmarshal(raw, dest)
}

func (f *flakyStore) Set(_ context.Context, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errDisk
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *flakyStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *flakyStore) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKeys {
		return nil, errDisk
	}
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func TestStudio_StorageFailureKeepsWorking(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	bus := testbus.New(t)

	reg := NewRegistry(store, bus.EventBus, RegistryOptions{}, zerolog.Nop())
	ws, err := reg.Create(ctx, "demo")
	require.NoError(t, err)

	store.failSet = true
	store.failGet[checkpointNamespace+":"+ws.ID] = true

	st := New(Options{
		Registry:  reg,
		Generator: llm.NewScript(llm.Reply{Text: opsReply}),
		Bus:       bus.EventBus,
		Prompter:  NewPrompter(config.DefaultPrompts(), nil),
		Logger:    zerolog.Nop(),
	})

	got, err := st.Prompt(ctx, ws.ID, "add a heading")
	require.NoError(t, err)
	assert.Equal(t, task.StatusPendingConfirmation, got.Status)

	approved, err := st.Approve(ctx, ws.ID, got.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, approved.Status)

	tree, version := ws.Tree()
	assert.Equal(t, 1, version)
	assert.Equal(t, map[string]string{"index.html": "<h1>hi</h1>"}, tree.Files())

	err = reg.Save(ctx, ws)
	require.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, errDisk)
}

func TestRegistry_LoadSkipsUnreadableCheckpoints(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	bus := testbus.New(t)

	writer := NewRegistry(store, bus.EventBus, RegistryOptions{}, zerolog.Nop())
	good, err := writer.Create(ctx, "good")
	require.NoError(t, err)
	bad, err := writer.Create(ctx, "bad")
	require.NoError(t, err)

	store.failGet[checkpointNamespace+":"+bad.ID] = true
	store.data[checkpointNamespace+":garbled"] = []byte("{")

	reader := NewRegistry(store, bus.EventBus, RegistryOptions{}, zerolog.Nop())
	err = reader.Load(ctx)
	require.ErrorIs(t, err, ErrStorageFailure)

	_, err = reader.Get(good.ID)
	require.NoError(t, err, "readable checkpoints still load")
	_, err = reader.Get(bad.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
	assert.Len(t, reader.List(), 1)

	t.Run("failing key listing leaves an empty usable registry", func(t *testing.T) {
		store.failKeys = true
		empty := NewRegistry(store, bus.EventBus, RegistryOptions{}, zerolog.Nop())

		require.ErrorIs(t, empty.Load(ctx), ErrStorageFailure)
		assert.Empty(t, empty.List())

		_, err := empty.Create(ctx, "fresh")
		require.NoError(t, err)
	})
}

func TestStudio_ProcessesShareCheckpoints(t *testing.T) {
	ctx := context.Background()
	store := stores.NewKVStore(openDB(t))
	bus := testbus.New(t)

	open := func() *Studio {
		reg := NewRegistry(store, bus.EventBus, RegistryOptions{}, zerolog.Nop())
		require.NoError(t, reg.Load(ctx))
		return New(Options{
			Registry:  reg,
			Generator: llm.NewScript(),
			Bus:       bus.EventBus,
			Prompter:  NewPrompter(config.DefaultPrompts(), nil),
			Logger:    zerolog.Nop(),
		})
	}

	server := open()
	ws, err := server.Registry().Create(ctx, "demo")
	require.NoError(t, err)

	other := open()
	otherWS, err := other.Registry().Get(ws.ID)
	require.NoError(t, err)

	_, version, err := server.Apply(ctx, ws.ID, []fileop.Operation{fileop.CreateFile("a.txt", "a")})
	require.NoError(t, err)
	require.Equal(t, 1, version)

	_, version, err = other.Apply(ctx, ws.ID, []fileop.Operation{fileop.CreateFile("b.txt", "b")})
	require.NoError(t, err)
	assert.Equal(t, 2, version, "derived from the version the server published")
	tree, _ := otherWS.Tree()
	assert.Equal(t, map[string]string{"a.txt": "a", "b.txt": "b"}, tree.Files())

	require.NoError(t, other.SetAutopilot(ctx, ws.ID, true))
	pending, err := other.Begin(ctx, ws.ID, "later")
	require.NoError(t, err)

	// A checkpoint from the server merges instead of overwriting.
	require.NoError(t, server.Registry().Save(ctx, ws))

	tree, version = ws.Tree()
	assert.Equal(t, 2, version)
	assert.Equal(t, map[string]string{"a.txt": "a", "b.txt": "b"}, tree.Files())
	assert.True(t, ws.Autopilot())
	_, err = ws.Tasks.Get(pending.ID)
	require.NoError(t, err)

	fresh, err := open().Registry().Get(ws.ID)
	require.NoError(t, err)
	tree, version = fresh.Tree()
	assert.Equal(t, 2, version)
	assert.Len(t, tree.Files(), 2)
	assert.True(t, fresh.Autopilot())
}
