package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/kiln/internal/core/eventbus"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/data/db"
	"github.com/colonyops/kiln/internal/data/stores"
	"github.com/colonyops/kiln/internal/studio"
)

// App is what commands operate on. main allocates it up front so commands
// can hold a pointer, and fills it in the root Before hook.
type App struct {
	DB      *db.DB
	Bus     *eventbus.EventBus
	Studio  *studio.Studio
	History *stores.HistoryStore
	Logger  zerolog.Logger
}

func (a *App) Registry() *studio.Registry { return a.Studio.Registry() }

// Workspace resolves a workspace by id or name.
func (a *App) Workspace(ref string) (*studio.Workspace, error) {
	return a.Registry().Resolve(ref)
}

// findTask resolves a task by id or unique id prefix.
func findTask(ws *studio.Workspace, ref string) (task.Task, error) {
	if t, err := ws.Tasks.Get(ref); err == nil {
		return t, nil
	}

	var matches []task.Task
	for _, t := range ws.Tasks.All() {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return task.Task{}, fmt.Errorf("%w: %s", task.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return task.Task{}, fmt.Errorf("task prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// shortID trims a task id for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
