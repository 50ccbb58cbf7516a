package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/kiln/internal/core/fileop"
	"github.com/colonyops/kiln/internal/core/styles"
	"github.com/colonyops/kiln/internal/core/vfs"
	"github.com/colonyops/kiln/internal/printer"
	"github.com/colonyops/kiln/pkg/iojson"
)

type TreeCmd struct {
	flags *Flags
	app   *App

	// flags
	glob       string
	jsonOutput bool
	force      bool
	ops        iojson.FileReader[operationsDoc]
}

// operationsDoc is the document read by kiln tree apply.
type operationsDoc struct {
	Operations []fileop.Operation `json:"operations"`
}

// NewTreeCmd creates a new tree command
func NewTreeCmd(flags *Flags, app *App) *TreeCmd {
	return &TreeCmd{
		flags: flags,
		app:   app,
		ops:   iojson.FileReader[operationsDoc]{Usage: `path to an operations document {"operations": [...]} (reads from stdin if not provided)`},
	}
}

// Register adds the tree command to the application
func (cmd *TreeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "tree",
		Usage: "Inspect and edit a workspace's file tree",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List the published tree",
				UsageText: "kiln tree ls [--glob <pattern>] <workspace>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "glob",
						Aliases:     []string{"g"},
						Usage:       `only list paths matching a pattern such as "src/**/*.tsx"`,
						Destination: &cmd.glob,
					},
				},
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runLs,
			},
			{
				Name:          "cat",
				Usage:         "Print a file",
				UsageText:     "kiln tree cat <workspace> <path>",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runCat,
			},
			{
				Name:      "export",
				Usage:     "Write the published tree to a directory",
				UsageText: "kiln tree export [--force] <workspace> <dir>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "force",
						Usage:       "write into a directory that is not empty",
						Destination: &cmd.force,
					},
				},
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runExport,
			},
			{
				Name:      "apply",
				Usage:     "Apply an operations document to the tree",
				UsageText: "kiln tree apply [-f ops.json] <workspace>",
				Description: `Applies file operations without involving the model. Operations that
cannot be applied are skipped and reported; the rest are published as a new
tree version.`,
				Flags:         []cli.Flag{cmd.ops.Flag()},
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runApply,
			},
			{
				Name:      "history",
				Usage:     "List recorded tree versions",
				UsageText: "kiln tree history [--json] <workspace>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runHistory,
			},
			{
				Name:          "restore",
				Usage:         "Publish an earlier tree version again",
				UsageText:     "kiln tree restore <workspace> <version>",
				ShellComplete: WorkspaceCompleter(cmd.app),
				Action:        cmd.runRestore,
			},
		},
	})

	return app
}

func (cmd *TreeCmd) runLs(ctx context.Context, c *cli.Command) error {
	ws, err := cmd.app.Workspace(c.Args().First())
	if err != nil {
		return err
	}
	tree, version := ws.Tree()
	out := c.Root().Writer

	if cmd.glob != "" {
		paths, err := tree.Glob(cmd.glob)
		if err != nil {
			return err
		}
		for _, p := range paths {
			_, _ = fmt.Fprintln(out, p)
		}
		return nil
	}

	_, _ = fmt.Fprintf(out, "%s %s\n", styles.HeaderStyle.Render(ws.Name), styles.MutedStyle.Render(fmt.Sprintf("v%d", version)))
	return tree.Walk(func(p vfs.Path, n vfs.Node) error {
		indent := strings.Repeat("  ", len(p)-1)
		folder := n.Kind() == vfs.KindFolder
		name := p.Base()
		if folder {
			name += "/"
		}
		_, err := fmt.Fprintf(out, "%s%s%s\n", indent, styles.IconFor(p.Base(), folder), styles.PathStyle.Render(name))
		return err
	})
}

func (cmd *TreeCmd) runCat(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <workspace> <path>")
	}
	ws, err := cmd.app.Workspace(c.Args().Get(0))
	if err != nil {
		return err
	}
	p, err := vfs.ParsePath(c.Args().Get(1))
	if err != nil {
		return err
	}
	tree, _ := ws.Tree()
	content, err := tree.ReadFile(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(c.Root().Writer, content)
	return err
}

func (cmd *TreeCmd) runExport(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <workspace> <dir>")
	}
	ws, err := cmd.app.Workspace(c.Args().Get(0))
	if err != nil {
		return err
	}
	dir := c.Args().Get(1)

	if !cmd.force {
		entries, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if len(entries) > 0 {
			return fmt.Errorf("%s is not empty (use --force to write anyway)", dir)
		}
	}

	tree, version := ws.Tree()
	n, err := exportTree(tree, dir)
	if err != nil {
		return err
	}
	p.Success(fmt.Sprintf("Exported %d file(s) from v%d", n, version), dir)
	return nil
}

// exportTree writes every folder and file of tree below dir and reports the
// number of files written.
func exportTree(tree *vfs.Tree, dir string) (int, error) {
	files := 0
	err := tree.Walk(func(p vfs.Path, n vfs.Node) error {
		target := filepath.Join(append([]string{dir}, p...)...)
		switch node := n.(type) {
		case *vfs.Folder:
			return os.MkdirAll(target, 0o755)
		case *vfs.File:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			files++
			return os.WriteFile(target, []byte(node.Content()), 0o644)
		}
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("export: %w", err)
	}
	return files, nil
}

func (cmd *TreeCmd) runApply(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	ws, err := cmd.app.Workspace(c.Args().First())
	if err != nil {
		return err
	}
	doc, err := cmd.ops.Read()
	if err != nil {
		return err
	}

	res, version, err := cmd.app.Studio.Apply(ctx, ws.ID, doc.Operations)
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		p.Warnf("skipped %s", f.Error())
	}
	p.Successf("Applied %d of %d operation(s), tree is now at version %d", res.Applied, len(doc.Operations), version)
	return nil
}

// versionRow is the JSON output format for kiln tree history --json.
type versionRow struct {
	Version   int64     `json:"version"`
	Reason    string    `json:"reason"`
	TaskID    string    `json:"taskId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (cmd *TreeCmd) runHistory(ctx context.Context, c *cli.Command) error {
	if cmd.app.History == nil {
		return errors.New("tree history is not available")
	}
	ws, err := cmd.app.Workspace(c.Args().First())
	if err != nil {
		return err
	}
	versions, err := cmd.app.History.List(ctx, ws.ID)
	if err != nil {
		return err
	}

	rows := make([]versionRow, 0, len(versions))
	for _, v := range versions {
		rows = append(rows, versionRow{Version: v.Version, Reason: v.Reason, TaskID: v.TaskID, CreatedAt: v.CreatedAt})
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.WriteWith(out, c.Root().ErrWriter, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(os.Stderr, "No versions recorded\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tREASON\tTASK\tCREATED")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Version, r.Reason, shortID(r.TaskID), r.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func (cmd *TreeCmd) runRestore(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if c.Args().Len() != 2 {
		return fmt.Errorf("expected <workspace> <version>")
	}
	ws, err := cmd.app.Workspace(c.Args().Get(0))
	if err != nil {
		return err
	}
	version, err := strconv.Atoi(strings.TrimPrefix(c.Args().Get(1), "v"))
	if err != nil {
		return fmt.Errorf("invalid version %q", c.Args().Get(1))
	}

	next, err := cmd.app.Studio.Restore(ctx, ws.ID, version)
	if err != nil {
		return err
	}
	p.Successf("Restored v%d as v%d", version, next)
	return nil
}
