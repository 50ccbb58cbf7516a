package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/colonyops/kiln/internal/core/styles"
	"github.com/colonyops/kiln/internal/core/task"
)

const wrapWidth = 100

// markdown renders md for the terminal, falling back to the raw text when
// glamour cannot render it.
func markdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.GlamourStyle()),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// taskMarkdown describes a task as a markdown document.
func taskMarkdown(t task.Task) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", t.Prompt)
	if t.Selection != nil {
		fmt.Fprintf(&b, "> selected `%s`: %s\n\n", t.Selection.Selector, t.Selection.Text)
	}
	if text := strings.TrimSpace(t.Assistant.Text); text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	if bp := t.Assistant.Blueprint; bp != nil {
		b.WriteString("---\n\n")
		b.WriteString(bp.Markdown())
		b.WriteString("\n\n")
	}
	if ops := t.Assistant.Operations; len(ops) > 0 {
		b.WriteString("### Operations\n\n")
		for _, op := range ops {
			fmt.Fprintf(&b, "- `%s`", op)
			if op.Description != "" {
				fmt.Fprintf(&b, " %s", op.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// writeTask prints a task header and its rendered body.
func writeTask(w io.Writer, t task.Task) {
	_, _ = fmt.Fprintf(w, "%s %s  %s  round %d\n",
		styles.HeaderStyle.Render("task"),
		t.ID,
		styles.Status(t.Status),
		t.Round,
	)
	if t.Decision != task.DecisionNone {
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.MutedStyle.Render("decision"), t.Decision)
	}
	if t.Error != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.ErrorStyle.Render("error"), t.Error)
	}
	_, _ = fmt.Fprint(w, markdown(taskMarkdown(t)))

	switch t.Status {
	case task.StatusPendingConfirmation:
		_, _ = fmt.Fprintln(w, styles.MutedStyle.Render("approve with: kiln task approve <workspace> "+shortID(t.ID)))
	case task.StatusPendingBlueprintApproval:
		_, _ = fmt.Fprintln(w, styles.MutedStyle.Render("approve the blueprint with: kiln task approve <workspace> "+shortID(t.ID)))
	}
}
