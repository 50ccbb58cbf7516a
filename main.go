package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/kiln/internal/commands"
	"github.com/colonyops/kiln/internal/core/config"
	"github.com/colonyops/kiln/internal/core/eventbus"
	"github.com/colonyops/kiln/internal/core/llm"
	"github.com/colonyops/kiln/internal/core/logging"
	"github.com/colonyops/kiln/internal/core/styles"
	"github.com/colonyops/kiln/internal/data/db"
	"github.com/colonyops/kiln/internal/data/stores"
	"github.com/colonyops/kiln/internal/printer"
	"github.com/colonyops/kiln/internal/studio"
	"github.com/colonyops/kiln/pkg/logutils"
)

// Set with -ldflags at release time.
var (
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

const busBuffer = 256

// buildVersion formats the version string, reading module and VCS data
// from the binary when ldflags were not set.
func buildVersion() string {
	v, rev, at := version, commit, date
	if info, ok := debug.ReadBuildInfo(); ok && v == "dev" {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		for _, kv := range info.Settings {
			if kv.Key == "vcs.revision" {
				rev = kv.Value
			} else if kv.Key == "vcs.time" {
				at = kv.Value
			}
		}
	}
	return fmt.Sprintf("%s (%.7s) %s", v, rev, at)
}

// openDatabase opens the database, moving a corrupted file aside once and
// starting over with an empty schema.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil || !stores.IsCorruptionError(err) {
		return database, err
	}

	backup, recErr := stores.RecoverFromCorruption(cfg.DataDir)
	if recErr != nil {
		return nil, errors.Join(err, recErr)
	}
	log.Warn().Err(err).Str("backup", backup).Msg("database was corrupted and has been moved aside")
	return db.Open(cfg.DataDir, opts)
}

// newGenerator builds the configured text generator. A Gemini generator that
// cannot be created is replaced by one that fails every round, so commands
// that never prompt keep working without an API key.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderScript:
		script, err := llm.LoadScript(cfg.ScriptPath())
		if err != nil {
			return nil, fmt.Errorf("load script: %w", err)
		}
		return script, nil
	default:
		gen, err := llm.NewGemini(ctx, cfg.LLM.APIKey(), cfg.LLM.Model)
		if err != nil {
			log.Debug().Err(err).Msg("gemini generator unavailable")
			return llm.Unavailable{Err: fmt.Errorf("%w (set %s)", err, cfg.LLM.APIKeyEnv)}, nil
		}
		return gen, nil
	}
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		kilnApp   = &commands.App{}
		database  *db.DB
		busCancel context.CancelFunc
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "kiln",
		Usage:     "Build small web projects by talking to a model",
		UsageText: "kiln [global options] command [command options]",
		Description: `Kiln keeps a virtual project per workspace and lets a model change it.

Prompts stream the model's reply, which may carry a blueprint to approve
before any code is written, or a batch of file operations to confirm. Every
applied batch publishes a new tree version that can be previewed live with
'kiln serve' and restored later.

Run 'kiln workspace new' to create a workspace, then 'kiln prompt' to start.`,
		Version: buildVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("KILN_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/kiln.log, '-' logs to stderr)",
				Sources:     cli.EnvVars("KILN_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("KILN_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("KILN_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logFile := flags.LogFile
			switch logFile {
			case "":
				logFile = filepath.Join(flags.DataDir, "kiln.log")
			case "-":
				logFile = ""
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			if palette, ok := styles.GetPalette(cfg.Theme); ok {
				styles.SetTheme(palette)
			}

			database, err = openDatabase(cfg)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			kvStore := stores.NewKVStore(database)
			historyStore := stores.NewHistoryStore(database)

			bus := eventbus.New(busBuffer)
			if log.Logger.GetLevel() <= zerolog.DebugLevel {
				eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))
			}
			busCtx, cancel := context.WithCancel(context.Background())
			busCancel = cancel
			go bus.Start(busCtx)

			registry := studio.NewRegistry(kvStore, bus, studio.RegistryOptions{
				MaxLogEntries:    cfg.Console.MaxEntries,
				DefaultAutopilot: cfg.Autopilot.Enabled,
			}, logging.Component("registry"))
			if err := registry.Load(ctx); err != nil {
				log.Warn().Err(err).Msg("some workspaces could not be loaded")
			}

			gen, err := newGenerator(ctx, cfg)
			if err != nil {
				return ctx, err
			}

			// Commands were registered with this pointer before Before ran.
			*kilnApp = commands.App{
				DB:      database,
				Bus:     bus,
				History: historyStore,
				Logger:  logging.Component("kiln"),
				Studio: studio.New(studio.Options{
					Registry:    registry,
					Generator:   gen,
					Bus:         bus,
					Prompter:    studio.NewPrompter(cfg.Prompts, cfg.Vars),
					History:     historyStore,
					HistoryKeep: cfg.History.Keep,
					Logger:      logging.Component("studio"),
				}),
			}

			return printer.NewContext(ctx, printer.New(os.Stderr)), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if busCancel != nil {
				busCancel()
			}
			defer func() {
				if logCloser != nil {
					logCloser()
				}
			}()

			if database == nil {
				return nil
			}
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("close database")
				return err
			}
			return nil
		},
	}

	app = commands.NewWorkspaceCmd(flags, kilnApp).Register(app)
	app = commands.NewPromptCmd(flags, kilnApp).Register(app)
	app = commands.NewTaskCmd(flags, kilnApp).Register(app)
	app = commands.NewTreeCmd(flags, kilnApp).Register(app)
	app = commands.NewAutopilotCmd(flags, kilnApp).Register(app)
	app = commands.NewServeCmd(flags, kilnApp).Register(app)
	app = commands.NewDoctorCmd(flags, kilnApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
