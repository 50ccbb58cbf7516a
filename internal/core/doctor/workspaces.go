package doctor

import (
	"context"
	"fmt"
)

// WorkspaceInfo summarizes a live workspace.
type WorkspaceInfo struct {
	ID      string
	Name    string
	Version int
	Files   int
	Pending int
}

// HistoryIndex is the part of the history store the check needs.
type HistoryIndex interface {
	Workspaces(ctx context.Context) ([]string, error)
	DeleteWorkspace(ctx context.Context, workspaceID string) error
}

// WorkspacesCheck lists workspaces and finds tree history left behind by
// deleted ones. With fix set the orphaned history is removed.
type WorkspacesCheck struct {
	workspaces []WorkspaceInfo
	history    HistoryIndex
	fix        bool
}

func NewWorkspacesCheck(workspaces []WorkspaceInfo, history HistoryIndex, fix bool) *WorkspacesCheck {
	return &WorkspacesCheck{workspaces: workspaces, history: history, fix: fix}
}

func (c *WorkspacesCheck) Name() string { return "Workspaces" }

func (c *WorkspacesCheck) Run(ctx context.Context) Result {
	res := Result{Name: c.Name()}

	if len(c.workspaces) == 0 {
		res.Add(Pass("workspaces", "none created"))
	}

	live := make(map[string]struct{}, len(c.workspaces))
	for _, ws := range c.workspaces {
		live[ws.ID] = struct{}{}

		detail := fmt.Sprintf("v%d, %d file(s)", ws.Version, ws.Files)
		if ws.Pending == 0 {
			res.Add(Pass(ws.Name, detail))
			continue
		}
		res.Add(Warn(ws.Name, fmt.Sprintf("%s, %d task(s) awaiting approval", detail, ws.Pending)))
	}

	if c.history == nil {
		return res
	}

	ids, err := c.history.Workspaces(ctx)
	if err != nil {
		res.Add(Fail("history", err.Error()))
		return res
	}

	for _, id := range ids {
		if _, ok := live[id]; ok {
			continue
		}
		res.Add(c.orphan(ctx, id))
	}
	return res
}

func (c *WorkspacesCheck) orphan(ctx context.Context, id string) Item {
	label := "history " + id
	if !c.fix {
		it := Warn(label, "versions recorded for a deleted workspace")
		it.Fixable = true
		return it
	}
	if err := c.history.DeleteWorkspace(ctx, id); err != nil {
		return Fail(label, fmt.Sprintf("delete failed: %v", err))
	}
	return Pass(label, "orphaned versions deleted")
}
