package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// WorkspaceCompleter suggests workspace names for the first positional
// argument and defers to flag completion once a flag is being typed.
func WorkspaceCompleter(app *App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		args := cmd.Args().Slice()
		if n := len(args); n > 0 {
			if strings.HasPrefix(args[n-1], "-") {
				cli.DefaultCompleteWithFlags(ctx, cmd)
			}
			return
		}
		if app.Studio == nil {
			return
		}

		for _, ws := range app.Registry().List() {
			_, _ = fmt.Fprintln(cmd.Root().Writer, ws.Name)
		}
	}
}
