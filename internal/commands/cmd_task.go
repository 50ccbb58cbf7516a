package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kiln/internal/core/styles"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/printer"
	"github.com/colonyops/kiln/pkg/iojson"
)

type TaskCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
	status     string
}

// NewTaskCmd creates a new task command
func NewTaskCmd(flags *Flags, app *App) *TaskCmd {
	return &TaskCmd{flags: flags, app: app}
}

// Register adds the task command to the application
func (cmd *TaskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "task",
		Usage: "Inspect and resolve tasks",
		Description: `Tasks are the model's turns. A task that proposes file changes waits in
pending_confirmation and one that proposes a blueprint waits in
pending_blueprint_approval until it is approved or rejected.

Task ids may be abbreviated to any unique prefix.`,
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List the tasks of a workspace",
				UsageText: "kiln task ls [--json] [--status <status>] <workspace>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
					&cli.StringFlag{
						Name:        "status",
						Usage:       "only show tasks with this status",
						Destination: &cmd.status,
					},
				},
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runLs,
			},
			{
				Name:          "show",
				Usage:         "Show a task with its reply, blueprint and operations",
				UsageText:     "kiln task show <workspace> <task>",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runShow,
			},
			{
				Name:          "approve",
				Usage:         "Apply pending changes or approve a blueprint",
				UsageText:     "kiln task approve <workspace> <task>",
				Description:   "Approving a blueprint starts the next round, which is streamed before the command returns.",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runApprove,
			},
			{
				Name:          "reject",
				Usage:         "Discard pending changes or a blueprint",
				UsageText:     "kiln task reject <workspace> <task>",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runReject,
			},
		},
	})

	return app
}

// taskRow is the JSON output format for kiln task ls --json.
type taskRow struct {
	ID         string      `json:"id"`
	Status     task.Status `json:"status"`
	Origin     task.Origin `json:"origin"`
	Round      int         `json:"round"`
	Prompt     string      `json:"prompt"`
	Operations int         `json:"operations"`
	Error      string      `json:"error,omitempty"`
}

func (cmd *TaskCmd) runLs(ctx context.Context, c *cli.Command) error {
	ws, err := cmd.app.Workspace(c.Args().First())
	if err != nil {
		return err
	}

	var rows []taskRow
	for _, t := range ws.Tasks.All() {
		if cmd.status != "" && string(t.Status) != cmd.status {
			continue
		}
		rows = append(rows, taskRow{
			ID:         t.ID,
			Status:     t.Status,
			Origin:     t.Origin,
			Round:      t.Round,
			Prompt:     t.Prompt,
			Operations: len(t.Assistant.Operations),
			Error:      t.Error,
		})
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		if rows == nil {
			rows = []taskRow{}
		}
		return iojson.WriteWith(out, c.Root().ErrWriter, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(os.Stderr, "No tasks found\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tORIGIN\tROUND\tPROMPT")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", shortID(r.ID), styles.Status(r.Status), r.Origin, r.Round, oneLine(r.Prompt, 60))
	}
	return w.Flush()
}

// oneLine flattens s and cuts it to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func (cmd *TaskCmd) args(c *cli.Command) (string, task.Task, error) {
	if c.Args().Len() != 2 {
		return "", task.Task{}, fmt.Errorf("expected <workspace> <task>")
	}
	ws, err := cmd.app.Workspace(c.Args().Get(0))
	if err != nil {
		return "", task.Task{}, err
	}
	t, err := findTask(ws, c.Args().Get(1))
	if err != nil {
		return "", task.Task{}, err
	}
	return ws.ID, t, nil
}

func (cmd *TaskCmd) runShow(ctx context.Context, c *cli.Command) error {
	_, t, err := cmd.args(c)
	if err != nil {
		return err
	}
	writeTask(c.Root().Writer, t)
	return nil
}

func (cmd *TaskCmd) runApprove(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	wsID, t, err := cmd.args(c)
	if err != nil {
		return err
	}

	t, err = cmd.app.Studio.Approve(ctx, wsID, t.ID)
	if err != nil {
		return err
	}

	if t.Status == task.StatusRunning {
		p.Infof("Blueprint approved, starting round %d", t.Round)
		t, err = cmd.app.Studio.Run(ctx, wsID, t.ID)
		if err != nil {
			return err
		}
		writeTask(c.Root().Writer, t)
		return nil
	}

	ws, err := cmd.app.Workspace(wsID)
	if err != nil {
		return err
	}
	_, version := ws.Tree()
	p.Successf("Applied %d operation(s), tree is now at version %d", len(t.Assistant.Operations), version)
	return nil
}

func (cmd *TaskCmd) runReject(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	wsID, t, err := cmd.args(c)
	if err != nil {
		return err
	}
	if _, err := cmd.app.Studio.Reject(ctx, wsID, t.ID); err != nil {
		return err
	}
	p.Successf("Task %s rejected", shortID(t.ID))
	return nil
}
