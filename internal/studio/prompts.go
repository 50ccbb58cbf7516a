package studio

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/colonyops/kiln/internal/core/blueprint"
	"github.com/colonyops/kiln/internal/core/config"
	"github.com/colonyops/kiln/internal/core/llm"
	"github.com/colonyops/kiln/internal/core/sandbox"
	"github.com/colonyops/kiln/internal/core/stream"
	"github.com/colonyops/kiln/internal/core/task"
	"github.com/colonyops/kiln/internal/core/vfs"
	"github.com/colonyops/kiln/pkg/tmpl"
)

const (
	// historyTurns bounds how many earlier tasks are replayed to the model.
	historyTurns = 10
	// autopilotErrors bounds how many console errors the autopilot prompt quotes.
	autopilotErrors = 5
)

// Prompter renders model requests from the configured templates.
type Prompter struct {
	prompts config.Prompts
	vars    map[string]any
}

func NewPrompter(prompts config.Prompts, vars map[string]any) *Prompter {
	return &Prompter{prompts: prompts, vars: vars}
}

// Request builds the prompt and generation context for the current round of t.
// tasks are the workspace's tasks in creation order and may include t.
func (p *Prompter) Request(tree *vfs.Tree, tasks []task.Task, t task.Task) (string, llm.Context, error) {
	bp := t.Blueprint
	if bp == nil {
		bp = latestBlueprint(tasks, t.ID)
	}

	sysData := config.SystemPromptData{
		BlueprintMarker:  stream.BlueprintMarker,
		OperationsMarker: stream.OperationsMarker,
		Tree:             RenderTree(tree),
		Vars:             p.vars,
	}
	if bp != nil {
		sysData.Blueprint = bp.Markdown()
	}

	system, err := tmpl.Render(p.prompts.System, sysData)
	if err != nil {
		return "", llm.Context{}, fmt.Errorf("render system prompt: %w", err)
	}

	prompt, err := p.userPrompt(t)
	if err != nil {
		return "", llm.Context{}, err
	}

	return prompt, llm.Context{System: system, History: historyOf(tasks, t.ID)}, nil
}

func (p *Prompter) userPrompt(t task.Task) (string, error) {
	if t.Round > 1 && t.Blueprint != nil {
		data, err := json.MarshalIndent(t.Blueprint, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode blueprint: %w", err)
		}
		out, err := tmpl.Render(p.prompts.Blueprint, config.BlueprintPromptData{
			Prompt:        t.Prompt,
			BlueprintJSON: string(data),
			Vars:          p.vars,
		})
		if err != nil {
			return "", fmt.Errorf("render blueprint prompt: %w", err)
		}
		return out, nil
	}

	if t.Origin == task.OriginAutopilot {
		return t.Prompt, nil
	}

	data := config.UserPromptData{Prompt: t.Prompt, Vars: p.vars}
	if t.Selection != nil {
		data.Selector = t.Selection.Selector
		data.Text = t.Selection.Text
	}
	out, err := tmpl.Render(p.prompts.User, data)
	if err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}
	return out, nil
}

// Autopilot renders the instruction for an autopilot task.
func (p *Prompter) Autopilot(tree *vfs.Tree, logs []sandbox.LogEntry) (string, error) {
	var errs []string
	for i := len(logs) - 1; i >= 0 && len(errs) < autopilotErrors; i-- {
		if logs[i].Level == sandbox.LevelError {
			errs = append(errs, logs[i].Message)
		}
	}
	// oldest first
	for i, j := 0, len(errs)-1; i < j; i, j = i+1, j-1 {
		errs[i], errs[j] = errs[j], errs[i]
	}

	out, err := tmpl.Render(p.prompts.Autopilot, config.AutopilotPromptData{
		Tree:   RenderTree(tree),
		Errors: errs,
		Vars:   p.vars,
	})
	if err != nil {
		return "", fmt.Errorf("render autopilot prompt: %w", err)
	}
	return out, nil
}

// RenderTree lists every folder and file of tree with file contents in
// fenced blocks. An empty tree renders as an empty string.
func RenderTree(tree *vfs.Tree) string {
	var b strings.Builder
	for _, e := range tree.Entries() {
		switch e.Kind {
		case vfs.KindFolder:
			fmt.Fprintf(&b, "%s/\n", e.Path)
		case vfs.KindFile:
			fmt.Fprintf(&b, "%s\n```\n%s\n```\n", e.Path, strings.TrimRight(e.Content, "\n"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// historyOf replays the most recent finished tasks before skip as turns.
func historyOf(tasks []task.Task, skip string) []llm.Turn {
	var turns []llm.Turn
	for _, t := range tasks {
		if t.ID == skip {
			break
		}
		if t.Status == task.StatusRunning || t.Assistant.Text == "" {
			continue
		}
		turns = append(turns,
			llm.Turn{Role: llm.RoleUser, Text: t.Prompt},
			llm.Turn{Role: llm.RoleModel, Text: t.Assistant.Text},
		)
	}
	if n := len(turns); n > historyTurns*2 {
		turns = turns[n-historyTurns*2:]
	}
	return turns
}

// latestBlueprint returns the most recently approved blueprint of any task
// other than skip.
func latestBlueprint(tasks []task.Task, skip string) *blueprint.Blueprint {
	for i := len(tasks) - 1; i >= 0; i-- {
		if tasks[i].ID != skip && tasks[i].Blueprint != nil {
			return tasks[i].Blueprint
		}
	}
	return nil
}
