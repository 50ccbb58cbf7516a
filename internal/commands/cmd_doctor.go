package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kiln/internal/core/doctor"
	"github.com/colonyops/kiln/internal/core/styles"
	"github.com/colonyops/kiln/internal/data/db"
	"github.com/colonyops/kiln/pkg/iojson"
)

type DoctorCmd struct {
	flags  *Flags
	app    *App
	format string
	fix    bool
}

func NewDoctorCmd(flags *Flags, app *App) *DoctorCmd {
	return &DoctorCmd{flags: flags, app: app}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your kiln setup",
		UsageText:   "kiln doctor [options]",
		Description: "Runs diagnostic checks on configuration, the model provider, storage and workspaces.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "fix issues that can be repaired (e.g., delete orphaned history)",
				Destination: &cmd.fix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) checks() []doctor.Check {
	cfg := cmd.flags.Config

	var infos []doctor.WorkspaceInfo
	for _, ws := range cmd.app.Registry().List() {
		tree, version := ws.Tree()
		pending := 0
		for _, t := range ws.Tasks.All() {
			if t.Status.IsPending() {
				pending++
			}
		}
		infos = append(infos, doctor.WorkspaceInfo{
			ID:      ws.ID,
			Name:    ws.Name,
			Version: version,
			Files:   len(tree.Files()),
			Pending: pending,
		})
	}

	var history doctor.HistoryIndex
	if cmd.app.History != nil {
		history = cmd.app.History
	}

	return []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewModelCheck(cfg),
		doctor.NewStorageCheck(cmd.app.DB.Conn(), filepath.Join(cfg.DataDir, db.FileName)),
		doctor.NewWorkspacesCheck(infos, history, cmd.fix),
	}
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	results := doctor.RunAll(ctx, cmd.checks())

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	summary := doctor.Summarize(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary doctor.Summary  `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: summary.Healthy(),
		Summary: summary,
		Checks:  results,
	}

	return iojson.WriteWith(c.Root().Writer, os.Stderr, out)
}

func statusIcon(s doctor.Status) string {
	switch s {
	case doctor.StatusPass:
		return styles.SuccessStyle.Render("✔")
	case doctor.StatusWarn:
		return styles.WarningStyle.Render("●")
	default:
		return styles.ErrorStyle.Render("✘")
	}
}

func (cmd *DoctorCmd) outputText(results []doctor.Result) error {
	w := os.Stderr
	summary := doctor.Summarize(results)

	_, _ = fmt.Fprintf(w, "\n%s\n%s\n\n",
		styles.HeaderStyle.Render("Kiln Doctor"),
		styles.DividerStyle.Render(strings.Repeat("─", 40)))

	for _, result := range results {
		_, _ = fmt.Fprintln(w, styles.PathStyle.Bold(true).Render(result.Name))
		for _, item := range result.Items {
			line := "  " + statusIcon(item.Status) + " " + item.Label
			if item.Detail != "" {
				line += " " + styles.MutedStyle.Render(item.Detail)
			}
			_, _ = fmt.Fprintln(w, line)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintf(w, "%s  %s  %s\n",
		styles.SuccessStyle.Render(fmt.Sprintf("%d passed", summary.Passed)),
		styles.WarningStyle.Render(fmt.Sprintf("%d warnings", summary.Warned)),
		styles.ErrorStyle.Render(fmt.Sprintf("%d failed", summary.Failed)))

	if !cmd.fix && summary.Fixable > 0 {
		_, _ = fmt.Fprintf(w, "\n%s\n",
			styles.MutedStyle.Render(fmt.Sprintf("Run 'kiln doctor --fix' to fix %d issue(s)", summary.Fixable)))
	}

	if !summary.Healthy() {
		return cli.Exit("", 1)
	}
	return nil
}
