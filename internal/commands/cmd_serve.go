package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/kiln/internal/core/logging"
	"github.com/colonyops/kiln/internal/preview"
	"github.com/colonyops/kiln/internal/printer"
	"github.com/colonyops/kiln/internal/studio/autopilot"
)

const shutdownTimeout = 5 * time.Second

type ServeCmd struct {
	flags *Flags
	app   *App

	// flags
	addr  string
	pprof bool
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, app *App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the live preview and the autopilot loop",
		UsageText: "kiln serve [--addr host:port] [--pprof]",
		Description: `Serves every workspace's published tree at /preview/<workspace>/ with the
console bridge injected, plus the JSON API used to prompt and approve tasks.

Autopilot ticks run while the server is up. Stop with Ctrl-C; rounds already
streaming are allowed to settle.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides server.addr)",
				Sources:     cli.EnvVars("KILN_ADDR"),
				Destination: &cmd.addr,
			},
			&cli.BoolFlag{
				Name:        "pprof",
				Usage:       "mount the runtime profiler under /debug/pprof/",
				Destination: &cmd.pprof,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config

	addr := cfg.Server.Addr
	if cmd.addr != "" {
		addr = cmd.addr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := preview.New(cmd.app.Studio, cmd.app.Bus, preview.Options{
		Addr:   addr,
		Pprof:  cfg.Server.Pprof || cmd.pprof,
		Logger: logging.Component("preview"),
	})
	scheduler := autopilot.New(cfg.Autopilot.Interval, cmd.app.Studio.Autopilot, logging.Component("autopilot"))

	if err := server.Start(ctx); err != nil {
		return err
	}
	p.Success("Preview server listening", "http://"+server.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := scheduler.Run(ctx)
		cmd.app.Studio.Wait()
		return err
	})

	err := g.Wait()
	p.Infof("Stopped")
	return err
}
