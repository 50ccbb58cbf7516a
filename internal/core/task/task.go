// Package task defines the lifecycle of one unit of model work.
//
// A task starts out running. When its stream ends it moves to completed,
// error, pending_confirmation or pending_blueprint_approval. The two pending
// states wait for a human decision: a confirmation resolves to completed and
// an approved blueprint sends the task back to running for another round.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/colonyops/kiln/internal/core/blueprint"
	"github.com/colonyops/kiln/internal/core/fileop"
	"github.com/colonyops/kiln/internal/core/sandbox"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task transition")
)

type Status string

const (
	StatusRunning                  Status = "running"
	StatusCompleted                Status = "completed"
	StatusError                    Status = "error"
	StatusPendingConfirmation      Status = "pending_confirmation"
	StatusPendingBlueprintApproval Status = "pending_blueprint_approval"
)

// IsPending reports whether the status waits on a human decision.
func (s Status) IsPending() bool {
	return s == StatusPendingConfirmation || s == StatusPendingBlueprintApproval
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Origin records who started a task.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAutopilot Origin = "autopilot"
)

// Decision records how a pending confirmation was resolved.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Assistant is what the model produced during the current round.
type Assistant struct {
	Text       string               `json:"text"`
	Operations []fileop.Operation   `json:"operations,omitempty"`
	Blueprint  *blueprint.Blueprint `json:"blueprint,omitempty"`
}

type Task struct {
	ID        string             `json:"id"`
	Prompt    string             `json:"prompt"`
	Origin    Origin             `json:"origin"`
	Status    Status             `json:"status"`
	Assistant Assistant          `json:"assistant"`
	Error     string             `json:"error,omitempty"`
	Decision  Decision           `json:"decision,omitempty"`
	Selection *sandbox.Selection `json:"selection,omitempty"`
	// Blueprint is the plan approved for this task, carried into later rounds.
	Blueprint *blueprint.Blueprint `json:"blueprint,omitempty"`
	Round     int                  `json:"round"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// New creates a running task.
func New(prompt string, origin Origin) Task {
	now := time.Now()
	return Task{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Origin:    origin,
		Status:    StatusRunning,
		Round:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Task) expect(op string, want ...Status) error {
	for _, s := range want {
		if t.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s a %s task", ErrInvalidTransition, op, t.Status)
}

func (t *Task) touch() { t.UpdatedAt = time.Now() }

// SetContent replaces the visible assistant text while streaming.
func (t *Task) SetContent(text string) error {
	if err := t.expect("update", StatusRunning); err != nil {
		return err
	}
	t.Assistant.Text = text
	t.touch()
	return nil
}

// Complete ends the round with nothing left to decide.
func (t *Task) Complete(a Assistant) error {
	if err := t.expect("complete", StatusRunning); err != nil {
		return err
	}
	t.Assistant = a
	t.Status = StatusCompleted
	t.touch()
	return nil
}

// Fail ends the round with a retained cause.
func (t *Task) Fail(reason string) error {
	if err := t.expect("fail", StatusRunning); err != nil {
		return err
	}
	t.Status = StatusError
	t.Error = reason
	t.touch()
	return nil
}

// AwaitConfirmation holds a batch of operations for approval.
func (t *Task) AwaitConfirmation(a Assistant) error {
	if err := t.expect("hold", StatusRunning); err != nil {
		return err
	}
	t.Assistant = a
	t.Status = StatusPendingConfirmation
	t.touch()
	return nil
}

// AwaitBlueprintApproval holds a blueprint for approval.
func (t *Task) AwaitBlueprintApproval(a Assistant) error {
	if err := t.expect("hold", StatusRunning); err != nil {
		return err
	}
	if a.Blueprint == nil {
		return fmt.Errorf("%w: no blueprint to approve", ErrInvalidTransition)
	}
	t.Assistant = a
	t.Status = StatusPendingBlueprintApproval
	t.touch()
	return nil
}

// Resolve records the decision on a pending confirmation. Both outcomes
// complete the task; applying the batch is the caller's job. A rejected
// blueprint also completes the task.
func (t *Task) Resolve(d Decision) error {
	if d == DecisionNone {
		return fmt.Errorf("%w: empty decision", ErrInvalidTransition)
	}
	if t.Status == StatusPendingBlueprintApproval && d == DecisionApproved {
		return fmt.Errorf("%w: approved blueprints restart the task", ErrInvalidTransition)
	}
	if err := t.expect("resolve", StatusPendingConfirmation, StatusPendingBlueprintApproval); err != nil {
		return err
	}
	t.Decision = d
	t.Status = StatusCompleted
	t.touch()
	return nil
}

// Restart starts a new round after a blueprint was approved. The approved
// blueprint is kept on the task and the assistant output is cleared.
func (t *Task) Restart() error {
	if err := t.expect("restart", StatusPendingBlueprintApproval); err != nil {
		return err
	}
	t.Blueprint = t.Assistant.Blueprint
	t.Assistant = Assistant{}
	t.Status = StatusRunning
	t.Round++
	t.touch()
	return nil
}
