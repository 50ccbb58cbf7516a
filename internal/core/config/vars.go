package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// resolveVars builds the template vars from vars files, applied in order, with
// the inline vars block applied last. Relative file paths are resolved
// against configDir.
func resolveVars(configDir string, files []string, inline map[string]any) (map[string]any, error) {
	vars := map[string]any{}

	for _, name := range files {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, path)
		}

		layer, err := readVarsFile(path)
		if err != nil {
			return nil, fmt.Errorf("vars file %q: %w", name, err)
		}
		vars = overlay(vars, layer)
	}

	return overlay(vars, inline), nil
}

func readVarsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var layer map[string]any
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return layer, nil
}

// overlay returns base with top laid over it. Maps present on both sides are
// overlaid key by key; any other value in top replaces the one in base.
// Neither argument is modified.
func overlay(base, top map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]any{}
	}

	for key, val := range top {
		topMap, ok := val.(map[string]any)
		if !ok {
			out[key] = val
			continue
		}
		baseMap, _ := out[key].(map[string]any)
		out[key] = overlay(baseMap, topMap)
	}
	return out
}
