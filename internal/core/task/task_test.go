package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kiln/internal/core/blueprint"
	"github.com/colonyops/kiln/internal/core/fileop"
)

func TestTask_Transitions(t *testing.T) {
	bp := &blueprint.Blueprint{Name: "app"}
	ops := []fileop.Operation{fileop.CreateFile("a", "b")}

	tests := []struct {
		name       string
		steps      []func(*Task) error
		wantStatus Status
		wantErr    bool
	}{
		{
			name:       "complete",
			steps:      []func(*Task) error{func(t *Task) error { return t.Complete(Assistant{Text: "hi"}) }},
			wantStatus: StatusCompleted,
		},
		{
			name:       "fail",
			steps:      []func(*Task) error{func(t *Task) error { return t.Fail("boom") }},
			wantStatus: StatusError,
		},
		{
			name: "confirm then approve",
			steps: []func(*Task) error{
				func(t *Task) error { return t.AwaitConfirmation(Assistant{Operations: ops}) },
				func(t *Task) error { return t.Resolve(DecisionApproved) },
			},
			wantStatus: StatusCompleted,
		},
		{
			name: "confirm then reject",
			steps: []func(*Task) error{
				func(t *Task) error { return t.AwaitConfirmation(Assistant{Operations: ops}) },
				func(t *Task) error { return t.Resolve(DecisionRejected) },
			},
			wantStatus: StatusCompleted,
		},
		{
			name: "blueprint approval restarts",
			steps: []func(*Task) error{
				func(t *Task) error { return t.AwaitBlueprintApproval(Assistant{Blueprint: bp}) },
				func(t *Task) error { return t.Restart() },
			},
			wantStatus: StatusRunning,
		},
		{
			name: "blueprint cannot be approved through resolve",
			steps: []func(*Task) error{
				func(t *Task) error { return t.AwaitBlueprintApproval(Assistant{Blueprint: bp}) },
				func(t *Task) error { return t.Resolve(DecisionApproved) },
			},
			wantErr: true,
		},
		{
			name: "completed is terminal",
			steps: []func(*Task) error{
				func(t *Task) error { return t.Complete(Assistant{}) },
				func(t *Task) error { return t.Fail("late") },
			},
			wantErr: true,
		},
		{
			name:    "resolve while running",
			steps:   []func(*Task) error{func(t *Task) error { return t.Resolve(DecisionApproved) }},
			wantErr: true,
		},
		{
			name:    "restart while running",
			steps:   []func(*Task) error{func(t *Task) error { return t.Restart() }},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := New("prompt", OriginUser)
			var err error
			for _, step := range tt.steps {
				if err = step(&tk); err != nil {
					break
				}
			}
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, tk.Status)
		})
	}
}

func TestTask_RestartKeepsBlueprint(t *testing.T) {
	bp := &blueprint.Blueprint{Name: "app"}
	tk := New("build me an app", OriginUser)
	require.NoError(t, tk.AwaitBlueprintApproval(Assistant{Text: "plan", Blueprint: bp}))
	require.NoError(t, tk.Restart())

	assert.Equal(t, 2, tk.Round)
	assert.Same(t, bp, tk.Blueprint)
	assert.Empty(t, tk.Assistant.Text)
}

func TestList_Update(t *testing.T) {
	l := NewList()
	tk := New("p", OriginUser)
	require.NoError(t, l.Add(tk))
	require.Error(t, l.Add(tk), "duplicate ids are rejected")

	got, err := l.Update(tk.ID, func(t *Task) error { return t.SetContent("partial") })
	require.NoError(t, err)
	assert.Equal(t, "partial", got.Assistant.Text)

	// A failing update leaves the stored task untouched.
	_, err = l.Update(tk.ID, func(t *Task) error {
		t.Assistant.Text = "scribbled"
		return t.Resolve(DecisionApproved)
	})
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := l.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "partial", stored.Assistant.Text)

	_, err = l.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_AddIfNoneRunning(t *testing.T) {
	l := NewList()

	added, err := l.AddIfNoneRunning(New("user work", OriginUser))
	require.NoError(t, err)
	assert.True(t, added)

	first := New("auto 1", OriginAutopilot)
	added, err = l.AddIfNoneRunning(first)
	require.NoError(t, err)
	assert.True(t, added, "a running user task does not block autopilot")

	added, err = l.AddIfNoneRunning(New("auto 2", OriginAutopilot))
	require.NoError(t, err)
	assert.False(t, added)

	_, err = l.Update(first.ID, func(t *Task) error { return t.Complete(Assistant{}) })
	require.NoError(t, err)

	added, err = l.AddIfNoneRunning(New("auto 3", OriginAutopilot))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 3, l.Len())
}

func TestList_AddIfNoneRunning_Concurrent(t *testing.T) {
	l := NewList()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.AddIfNoneRunning(New("auto", OriginAutopilot))
		}()
	}
	wg.Wait()

	assert.Len(t, l.Running(OriginAutopilot), 1)
}

func TestList_AllKeepsOrder(t *testing.T) {
	a, b, c := New("a", OriginUser), New("b", OriginUser), New("c", OriginAutopilot)
	l := NewList(a, b)
	require.NoError(t, l.Add(c))

	var prompts []string
	for _, tk := range l.All() {
		prompts = append(prompts, tk.Prompt)
	}
	assert.Equal(t, []string{"a", "b", "c"}, prompts)
}

func TestList_Merge(t *testing.T) {
	older := New("first", OriginUser)
	l := NewList(older)

	newer := older
	require.NoError(t, newer.Complete(Assistant{Text: "done"}))
	newer.UpdatedAt = older.UpdatedAt.Add(time.Second)

	stale := older
	stale.Prompt = "stale copy"
	stale.UpdatedAt = older.UpdatedAt.Add(-time.Second)

	other := New("second", OriginAutopilot)

	l.Merge([]Task{newer, other})
	l.Merge([]Task{stale})

	got, err := l.Get(older.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "first", got.Prompt)

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, other.ID, all[1].ID)
}
