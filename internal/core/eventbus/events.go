// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within kiln.
package eventbus

import (
	"github.com/colonyops/kiln/internal/core/fileop"
	"github.com/colonyops/kiln/internal/core/sandbox"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/core/vfs"
)

// Keep list sorted A-Z
const (
	EventConsoleLogged    Event = "console.logged"
	EventElementSelected  Event = "element.selected"
	EventSandboxCommand   Event = "sandbox.command"
	EventTaskCreated      Event = "task.created"
	EventTaskUpdated      Event = "task.updated"
	EventTreePublished    Event = "tree.published"
	EventWorkspaceCreated Event = "workspace.created"
	EventWorkspaceDeleted Event = "workspace.deleted"
)

// ConsoleLoggedPayload is emitted when the preview surface relays a console entry.
type ConsoleLoggedPayload struct {
	WorkspaceID string
	Entry       sandbox.LogEntry
	Raised      bool
}

// ElementSelectedPayload is emitted when the user picks an element in the preview.
type ElementSelectedPayload struct {
	WorkspaceID string
	Selection   sandbox.Selection
}

// SandboxCommandPayload is emitted when the host needs to reach the preview surface.
type SandboxCommandPayload struct {
	WorkspaceID string
	Message     sandbox.Message
}

// TaskCreatedPayload is emitted when a task is added to a workspace.
type TaskCreatedPayload struct {
	WorkspaceID string
	Task        task.Task
}

// TaskUpdatedPayload is emitted on every task content or status change.
type TaskUpdatedPayload struct {
	WorkspaceID string
	Task        task.Task
}

// TreePublishedPayload is emitted after a new tree version becomes current.
type TreePublishedPayload struct {
	WorkspaceID string
	Version     int
	Tree        *vfs.Tree
	Failures    []fileop.Failure
}

// WorkspaceCreatedPayload is emitted when a workspace is created.
type WorkspaceCreatedPayload struct {
	WorkspaceID string
	Name        string
}

// WorkspaceDeletedPayload is emitted when a workspace is removed.
type WorkspaceDeletedPayload struct {
	WorkspaceID string
}

func (bus *EventBus) PublishConsoleLogged(p ConsoleLoggedPayload) {
	bus.send(EventConsoleLogged, p)
}

func (bus *EventBus) SubscribeConsoleLogged(fn func(ConsoleLoggedPayload)) {
	bus.subscribe(EventConsoleLogged, func(p any) { fn(p.(ConsoleLoggedPayload)) })
}

func (bus *EventBus) PublishElementSelected(p ElementSelectedPayload) {
	bus.send(EventElementSelected, p)
}

func (bus *EventBus) SubscribeElementSelected(fn func(ElementSelectedPayload)) {
	bus.subscribe(EventElementSelected, func(p any) { fn(p.(ElementSelectedPayload)) })
}

func (bus *EventBus) PublishSandboxCommand(p SandboxCommandPayload) {
	bus.send(EventSandboxCommand, p)
}

func (bus *EventBus) SubscribeSandboxCommand(fn func(SandboxCommandPayload)) {
	bus.subscribe(EventSandboxCommand, func(p any) { fn(p.(SandboxCommandPayload)) })
}

func (bus *EventBus) PublishTaskCreated(p TaskCreatedPayload) {
	bus.send(EventTaskCreated, p)
}

func (bus *EventBus) SubscribeTaskCreated(fn func(TaskCreatedPayload)) {
	bus.subscribe(EventTaskCreated, func(p any) { fn(p.(TaskCreatedPayload)) })
}

func (bus *EventBus) PublishTaskUpdated(p TaskUpdatedPayload) {
	bus.send(EventTaskUpdated, p)
}

func (bus *EventBus) SubscribeTaskUpdated(fn func(TaskUpdatedPayload)) {
	bus.subscribe(EventTaskUpdated, func(p any) { fn(p.(TaskUpdatedPayload)) })
}

func (bus *EventBus) PublishTreePublished(p TreePublishedPayload) {
	bus.send(EventTreePublished, p)
}

func (bus *EventBus) SubscribeTreePublished(fn func(TreePublishedPayload)) {
	bus.subscribe(EventTreePublished, func(p any) { fn(p.(TreePublishedPayload)) })
}

func (bus *EventBus) PublishWorkspaceCreated(p WorkspaceCreatedPayload) {
	bus.send(EventWorkspaceCreated, p)
}

func (bus *EventBus) SubscribeWorkspaceCreated(fn func(WorkspaceCreatedPayload)) {
	bus.subscribe(EventWorkspaceCreated, func(p any) { fn(p.(WorkspaceCreatedPayload)) })
}

func (bus *EventBus) PublishWorkspaceDeleted(p WorkspaceDeletedPayload) {
	bus.send(EventWorkspaceDeleted, p)
}

func (bus *EventBus) SubscribeWorkspaceDeleted(fn func(WorkspaceDeletedPayload)) {
	bus.subscribe(EventWorkspaceDeleted, func(p any) { fn(p.(WorkspaceDeletedPayload)) })
}
