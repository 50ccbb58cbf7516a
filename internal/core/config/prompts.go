package config

// SystemPromptData defines the fields available to prompts.system.
type SystemPromptData struct {
	BlueprintMarker  string
	OperationsMarker string
	Tree             string // indented listing of the current project tree
	Blueprint        string // markdown of the approved blueprint, empty if none
	Vars             map[string]any
}

// UserPromptData defines the fields available to prompts.user.
type UserPromptData struct {
	Prompt   string
	Selector string // selected element, empty if nothing is selected
	Text     string // text content of the selected element
	Vars     map[string]any
}

// BlueprintPromptData defines the fields available to prompts.blueprint,
// rendered when an approved blueprint starts the build round.
type BlueprintPromptData struct {
	Prompt        string
	BlueprintJSON string
	Vars          map[string]any
}

// AutopilotPromptData defines the fields available to prompts.autopilot.
type AutopilotPromptData struct {
	Tree   string
	Errors []string // recent console errors from the preview
	Vars   map[string]any
}

// DefaultPrompts returns the built-in prompt templates.
func DefaultPrompts() Prompts {
	return Prompts{
		System:    defaultSystemPrompt,
		User:      defaultUserPrompt,
		Blueprint: defaultBlueprintPrompt,
		Autopilot: defaultAutopilotPrompt,
	}
}

const defaultSystemPrompt = `You are a project builder. You edit a small web project that is
previewed live in the browser. Talk to the user briefly, then end your reply
with at most one machine readable payload.

To change files, write the line {{ .OperationsMarker }} followed by a JSON
document of the form:

{"operations": [
  {"operation": "CREATE_FILE", "path": "index.html", "content": "...", "description": "..."}
]}

Valid operations are CREATE_FILE, UPDATE_FILE, DELETE_FILE, CREATE_FOLDER,
DELETE_FOLDER, RENAME_FILE and RENAME_FOLDER. Renames carry "newPath".
File content is always the complete new content.

When the request describes a new application rather than a change, first
propose a plan: write the line {{ .BlueprintMarker }} followed by a JSON
document {"name": "...", "features": [{"title": "...", "description": "..."}],
"styleGuidelines": [{"category": "color", "description": "...", "colors": ["#..."]}]}.
Categories are color, typography, layout, iconography, animation and general.
Do not emit operations in the same reply as a blueprint.
{{ if .Blueprint }}
The approved blueprint for this project:

{{ .Blueprint }}
{{ end }}
Current project files:
{{ if .Tree }}{{ indent 2 .Tree }}{{ else }}  (empty project){{ end }}
`

const defaultUserPrompt = `{{ if .Selector }}The user selected the element {{ .Selector }}{{ if .Text }} with text "{{ .Text }}"{{ end }} in the preview.
Apply the request to that element.

{{ end }}{{ .Prompt }}`

const defaultBlueprintPrompt = `The user approved this blueprint. Build the application it describes now
and reply with file operations, not another blueprint.

{{ .BlueprintJSON }}

Original request: {{ .Prompt }}`

const defaultAutopilotPrompt = `Review the current project and make one small, safe improvement.
Reply with file operations only when there is something worth changing.
{{ if .Errors }}
Fix these errors reported by the preview first:
{{ range .Errors }}- {{ . }}
{{ end }}{{ end }}
Current project files:
{{ if .Tree }}{{ indent 2 .Tree }}{{ else }}  (empty project){{ end }}
`
