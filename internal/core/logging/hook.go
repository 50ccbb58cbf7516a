package logging

import "github.com/rs/zerolog"

// ContextHook copies the workspace and task ids of an event's context (set
// with Event.Ctx) onto the event.
type ContextHook struct{}

func (ContextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	s := scopeOf(e.GetCtx())
	if s.workspaceID != "" {
		e.Str("workspace_id", s.workspaceID)
	}
	if s.taskID != "" {
		e.Str("task_id", s.taskID)
	}
}
