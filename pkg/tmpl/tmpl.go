// Package tmpl renders the text templates used to build model prompts.
//
// Templates fail on unknown map keys and may use these functions:
//
//	json    indented JSON of a value
//	join    strings.Join, e.g. {{ join .Files ", " }}
//	indent  pad each non-empty line, e.g. {{ indent 2 .Tree }}
//	trim    strings.TrimSpace
//	upper   strings.ToUpper
package tmpl

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"json": func(v any) string {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "<json error: " + err.Error() + ">"
		}
		return string(b)
	},
	"join": strings.Join,
	"indent": func(n int, s string) string {
		pad := strings.Repeat(" ", n)
		lines := strings.Split(s, "\n")
		for i := range lines {
			if lines[i] != "" {
				lines[i] = pad + lines[i]
			}
		}
		return strings.Join(lines, "\n")
	},
	"trim":  strings.TrimSpace,
	"upper": strings.ToUpper,
}

// Template is a parsed prompt template.
type Template struct {
	t *template.Template
}

func Compile(src string) (*Template, error) {
	t, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Template{t: t}, nil
}

func (t *Template) Execute(data any) (string, error) {
	var sb strings.Builder
	if err := t.t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return sb.String(), nil
}

// Render compiles src and executes it once.
func Render(src string, data any) (string, error) {
	t, err := Compile(src)
	if err != nil {
		return "", err
	}
	return t.Execute(data)
}
