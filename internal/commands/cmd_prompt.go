package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kiln/internal/core/task"
)

type PromptCmd struct {
	flags *Flags
	app   *App

	// flags
	yes bool
}

// NewPromptCmd creates a new prompt command
func NewPromptCmd(flags *Flags, app *App) *PromptCmd {
	return &PromptCmd{flags: flags, app: app}
}

// Register adds the prompt command to the application
func (cmd *PromptCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "prompt",
		Usage:     "Ask the model to change a workspace",
		UsageText: "kiln prompt [--yes] <workspace> <prompt...>",
		Description: `Starts a task with the given prompt and streams the model's reply.

File changes and blueprints wait for approval unless --yes is given. The
element picked in the preview, if any, is attached to the prompt.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "approve blueprints and file changes without asking",
				Destination: &cmd.yes,
			},
		},
		ShellComplete: WorkspaceCompleter(cmd.app),
		Action:        cmd.run,
	})

	return app
}

func (cmd *PromptCmd) run(ctx context.Context, c *cli.Command) error {
	args := c.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: kiln prompt <workspace> <prompt...>")
	}

	ws, err := cmd.app.Workspace(args[0])
	if err != nil {
		return err
	}

	t, err := cmd.app.Studio.Prompt(ctx, ws.ID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	if cmd.yes {
		t, err = approveAll(ctx, cmd.app, ws.ID, t)
		if err != nil {
			return err
		}
	}

	writeTask(c.Root().Writer, t)
	if t.Status == task.StatusError {
		return cli.Exit("", 1)
	}
	return nil
}

// approveAll approves t until it settles, running every round an approved
// blueprint starts.
func approveAll(ctx context.Context, app *App, wsID string, t task.Task) (task.Task, error) {
	var err error
	for t.Status.IsPending() {
		t, err = app.Studio.Approve(ctx, wsID, t.ID)
		if err != nil {
			return t, err
		}
		if t.Status == task.StatusRunning {
			t, err = app.Studio.Run(ctx, wsID, t.ID)
			if err != nil {
				return t, err
			}
		}
	}
	return t, nil
}
