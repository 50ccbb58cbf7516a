// Package logging holds kiln's zerolog conventions: component loggers and
// context scoped workspace and task ids.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentKey is the field naming the subsystem that wrote an event.
const ComponentKey = "cmp"

// Component derives a logger for a subsystem from the global logger. The
// global logger is read at call time, so call it after it is configured.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str(ComponentKey, name).Logger()
}
