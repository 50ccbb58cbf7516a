package commands

import (
	"os"
	"path/filepath"

	"github.com/colonyops/kiln/internal/core/config"
)

// Flags holds the global flag values shared by every command.
type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook.
	Config *config.Config
}

// xdgDir returns $env/kiln, falling back to ~/<fallback...>/kiln when env is
// unset.
func xdgDir(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(append([]string{home}, fallback...)...)
	}
	return filepath.Join(base, "kiln")
}

func DefaultConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.yaml")
}

func DefaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}
