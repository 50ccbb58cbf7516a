package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kiln/internal/printer"
)

type AutopilotCmd struct {
	flags *Flags
	app   *App
}

// NewAutopilotCmd creates a new autopilot command
func NewAutopilotCmd(flags *Flags, app *App) *AutopilotCmd {
	return &AutopilotCmd{flags: flags, app: app}
}

// Register adds the autopilot command to the application
func (cmd *AutopilotCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "autopilot",
		Usage: "Let the model keep improving a workspace on its own",
		Description: `While autopilot is on, kiln serve periodically asks the model to improve
the workspace and applies its changes without confirmation. A workspace
whose previous autopilot round is still running is skipped until the next
tick; user tasks never block a round.`,
		Commands: []*cli.Command{
			{
				Name:          "on",
				Usage:         "Enable autopilot",
				UsageText:     "kiln autopilot on <workspace>",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action: func(ctx context.Context, c *cli.Command) error {
					return cmd.set(ctx, c, true)
				},
			},
			{
				Name:          "off",
				Usage:         "Disable autopilot",
				UsageText:     "kiln autopilot off <workspace>",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action: func(ctx context.Context, c *cli.Command) error {
					return cmd.set(ctx, c, false)
				},
			},
		},
	})

	return app
}

func (cmd *AutopilotCmd) set(ctx context.Context, c *cli.Command, enabled bool) error {
	p := printer.Ctx(ctx)

	ws, err := cmd.app.Workspace(c.Args().First())
	if err != nil {
		return err
	}
	if err := cmd.app.Studio.SetAutopilot(ctx, ws.ID, enabled); err != nil {
		return err
	}

	state := "off"
	if enabled {
		state = "on"
	}
	p.Successf("Autopilot %s for %s", state, ws.Name)
	return nil
}
