package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	lipgloss "charm.land/lipgloss/v2"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/kiln/internal/core/styles"
	"github.com/colonyops/kiln/internal/printer"
	"github.com/colonyops/kiln/internal/studio"
	"github.com/colonyops/kiln/pkg/iojson"
)

type WorkspaceCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
	autopilot  bool
}

// NewWorkspaceCmd creates a new workspace command
func NewWorkspaceCmd(flags *Flags, app *App) *WorkspaceCmd {
	return &WorkspaceCmd{flags: flags, app: app}
}

// Register adds the workspace command to the application
func (cmd *WorkspaceCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "workspace",
		Aliases: []string{"ws"},
		Usage:   "Manage workspaces",
		Description: `A workspace is one generated project: its file tree, its task history
and the console of its live preview.`,
		Commands: []*cli.Command{
			{
				Name:      "new",
				Usage:     "Create an empty workspace",
				UsageText: "kiln workspace new [--autopilot] [name]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "autopilot",
						Usage:       "start with autopilot enabled",
						Destination: &cmd.autopilot,
					},
				},
				Action: cmd.runNew,
			},
			{
				Name:      "ls",
				Usage:     "List workspaces",
				UsageText: "kiln workspace ls [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.runLs,
			},
			{
				Name:          "rm",
				Usage:         "Delete a workspace and its history",
				UsageText:     "kiln workspace rm <workspace>",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runRm,
			},
		},
	})

	return app
}

func (cmd *WorkspaceCmd) runNew(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	ws, err := cmd.app.Registry().Create(ctx, c.Args().First())
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	if cmd.autopilot {
		if err := cmd.app.Studio.SetAutopilot(ctx, ws.ID, true); err != nil {
			return err
		}
	}

	p.Success("Workspace created", fmt.Sprintf("%s (%s)", ws.Name, ws.ID))
	return nil
}

// workspaceInfo is the JSON output format for kiln workspace ls --json.
type workspaceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Files     int    `json:"files"`
	Tasks     int    `json:"tasks"`
	Autopilot bool   `json:"autopilot"`
}

func infoOf(ws *studio.Workspace) workspaceInfo {
	tree, version := ws.Tree()
	return workspaceInfo{
		ID:        ws.ID,
		Name:      ws.Name,
		Version:   version,
		Files:     len(tree.Files()),
		Tasks:     ws.Tasks.Len(),
		Autopilot: ws.Autopilot(),
	}
}

func (cmd *WorkspaceCmd) runLs(ctx context.Context, c *cli.Command) error {
	list := cmd.app.Registry().List()
	out := c.Root().Writer

	if cmd.jsonOutput {
		infos := make([]workspaceInfo, 0, len(list))
		for _, ws := range list {
			infos = append(infos, infoOf(ws))
		}
		return iojson.WriteWith(out, c.Root().ErrWriter, infos)
	}

	if len(list) == 0 {
		fmt.Fprintf(os.Stderr, "No workspaces found\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tVERSION\tFILES\tTASKS\tAUTOPILOT")
	for _, ws := range list {
		info := infoOf(ws)
		name := lipgloss.NewStyle().Foreground(styles.ColorForString(info.Name)).Render(info.Name)
		autopilot := "off"
		if info.Autopilot {
			autopilot = "on"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", info.ID, name, info.Version, info.Files, info.Tasks, autopilot)
	}
	return w.Flush()
}

func (cmd *WorkspaceCmd) runRm(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	ws, err := cmd.app.Workspace(c.Args().First())
	if err != nil {
		return err
	}
	if err := cmd.app.Registry().Delete(ctx, ws.ID); err != nil {
		return err
	}
	if cmd.app.History != nil {
		if err := cmd.app.History.DeleteWorkspace(ctx, ws.ID); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
	}

	p.Successf("Workspace %s deleted", ws.Name)
	return nil
}
