package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger logs bus traffic. Published events are logged at debug
// level with the ids they carry, drops as warnings and subscriber panics as
// errors.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		describe(logger.Debug().Str("event", string(event)), payload).Msg("event published")
	})

	bus.OnDrop(func(event Event, payload any) {
		describe(logger.Warn().Str("event", string(event)), payload).Msg("event dropped, buffer full")
	})

	bus.OnPanic(func(event Event, payload any, recovered any) {
		describe(logger.Error().Str("event", string(event)), payload).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

// describe adds the identifying fields of a payload to e.
func describe(e *zerolog.Event, payload any) *zerolog.Event {
	switch p := payload.(type) {
	case ConsoleLoggedPayload:
		return e.Str("workspace_id", p.WorkspaceID).Str("level", string(p.Entry.Level)).Bool("raised", p.Raised)
	case ElementSelectedPayload:
		return e.Str("workspace_id", p.WorkspaceID).Str("selector", p.Selection.Selector)
	case SandboxCommandPayload:
		e = e.Str("workspace_id", p.WorkspaceID)
		if p.Message != nil {
			e = e.Str("type", string(p.Message.Type()))
		}
		return e
	case TaskCreatedPayload:
		return e.Str("workspace_id", p.WorkspaceID).Str("task_id", p.Task.ID).Str("status", string(p.Task.Status))
	case TaskUpdatedPayload:
		return e.Str("workspace_id", p.WorkspaceID).Str("task_id", p.Task.ID).Str("status", string(p.Task.Status))
	case TreePublishedPayload:
		return e.Str("workspace_id", p.WorkspaceID).Int("version", p.Version).Int("failures", len(p.Failures))
	case WorkspaceCreatedPayload:
		return e.Str("workspace_id", p.WorkspaceID).Str("name", p.Name)
	case WorkspaceDeletedPayload:
		return e.Str("workspace_id", p.WorkspaceID)
	default:
		return e
	}
}
