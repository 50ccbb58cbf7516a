// Package config handles configuration loading and validation for kiln.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/kiln/internal/core/styles"
)

// Supported text generation providers.
const (
	ProviderGemini = "gemini"
	ProviderScript = "script"
)

// Config holds the application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Autopilot AutopilotConfig `yaml:"autopilot"`
	Console   ConsoleConfig   `yaml:"console"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	Prompts   Prompts         `yaml:"prompts"`
	Theme     string          `yaml:"theme"`
	VarsFiles []string        `yaml:"vars_files"`
	Vars      map[string]any  `yaml:"vars"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// LLMConfig selects the text generator.
type LLMConfig struct {
	Provider   string `yaml:"provider"`    // gemini or script
	Model      string `yaml:"model"`       // model name passed to the provider
	APIKeyEnv  string `yaml:"api_key_env"` // environment variable holding the API key
	ScriptFile string `yaml:"script_file"` // YAML replies file for the script provider
}

// APIKey reads the configured API key from the environment.
func (l LLMConfig) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

// AutopilotConfig controls the background improvement loop.
type AutopilotConfig struct {
	// Enabled is the initial autopilot mode of new workspaces.
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// ConsoleConfig bounds the sandbox console log window.
type ConsoleConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// ServerConfig configures the preview host.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Pprof mounts the runtime profiler under /debug/pprof/.
	Pprof bool `yaml:"pprof"`
}

// DatabaseConfig tunes the SQLite connection pool.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// HistoryConfig controls tree version retention.
type HistoryConfig struct {
	// Keep is the number of versions retained per workspace. 0 keeps all.
	Keep int `yaml:"keep"`
}

// Prompts holds the text/template sources used to build model requests.
// See the *PromptData types for the fields available to each.
type Prompts struct {
	System    string `yaml:"system"`
	User      string `yaml:"user"`
	Blueprint string `yaml:"blueprint"`
	Autopilot string `yaml:"autopilot"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:  ProviderGemini,
			Model:     "gemini-2.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
		},
		Autopilot: AutopilotConfig{
			Enabled:  false,
			Interval: 30 * time.Second,
		},
		Console: ConsoleConfig{
			MaxEntries: 500,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7420",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
		History: HistoryConfig{
			Keep: 50,
		},
		Prompts: DefaultPrompts(),
		Theme:   styles.DefaultTheme,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	if len(cfg.VarsFiles) > 0 {
		vars, err := resolveVars(filepath.Dir(configPath), cfg.VarsFiles, cfg.Vars)
		if err != nil {
			return nil, err
		}
		cfg.Vars = vars
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaults.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaults.LLM.Model
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = defaults.LLM.APIKeyEnv
	}
	if c.Autopilot.Interval == 0 {
		c.Autopilot.Interval = defaults.Autopilot.Interval
	}
	if c.Console.MaxEntries == 0 {
		c.Console.MaxEntries = defaults.Console.MaxEntries
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Theme == "" {
		c.Theme = styles.DefaultTheme
	}
	if c.Prompts.System == "" {
		c.Prompts.System = defaults.Prompts.System
	}
	if c.Prompts.User == "" {
		c.Prompts.User = defaults.Prompts.User
	}
	if c.Prompts.Blueprint == "" {
		c.Prompts.Blueprint = defaults.Prompts.Blueprint
	}
	if c.Prompts.Autopilot == "" {
		c.Prompts.Autopilot = defaults.Prompts.Autopilot
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	switch c.LLM.Provider {
	case ProviderGemini:
	case ProviderScript:
		if c.LLM.ScriptFile == "" {
			return fmt.Errorf("llm.script_file is required for the %q provider", ProviderScript)
		}
	default:
		return fmt.Errorf("llm.provider %q must be %q or %q", c.LLM.Provider, ProviderGemini, ProviderScript)
	}

	if c.Autopilot.Interval < time.Second {
		return fmt.Errorf("autopilot.interval must be at least 1s")
	}

	if c.Console.MaxEntries < 1 {
		return fmt.Errorf("console.max_entries must be at least 1")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Database.MaxOpenConns < 1 || c.Database.MaxIdleConns < 0 || c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database settings must be positive")
	}

	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep cannot be negative")
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("theme %q is not one of %v", c.Theme, styles.ThemeNames())
	}

	return nil
}

// ScriptPath resolves llm.script_file relative to the data directory.
func (c *Config) ScriptPath() string {
	if c.LLM.ScriptFile == "" || filepath.IsAbs(c.LLM.ScriptFile) {
		return c.LLM.ScriptFile
	}
	return filepath.Join(c.DataDir, c.LLM.ScriptFile)
}
