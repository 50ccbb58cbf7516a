package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/kiln/pkg/tmpl"
)

// ValidationWarning is a configuration issue that does not stop kiln from
// running.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep runs Validate and then the checks that touch the filesystem or
// render templates. An empty configPath skips the config file check.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validatePrompts(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.LLM.Provider == ProviderGemini && c.LLM.APIKey() == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "LLM",
			Item:     c.LLM.APIKeyEnv,
			Message:  "API key environment variable is not set; prompts will fail",
		})
	}

	if c.History.Keep == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "History",
			Message:  "history.keep is 0; tree versions are never pruned",
		})
	}

	return warnings
}

// pathRule returns a criterio rule that stats a path. A missing path passes
// when missingOK is set; otherwise it must exist and be a directory or a
// regular file as dir says. An empty path always passes.
func pathRule(dir, missingOK bool) func(string) error {
	return func(path string) error {
		if path == "" {
			return nil
		}

		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && missingOK:
			return nil
		case err != nil:
			return fmt.Errorf("cannot access: %w", err)
		case dir && !info.IsDir():
			return errors.New("exists but is not a directory")
		case !dir && info.IsDir():
			return errors.New("is a directory, not a file")
		}
		return nil
	}
}

// validateFileAccess checks the config file, the data directory and, for the
// script provider, the script file.
func (c *Config) validateFileAccess(configPath string) error {
	fields := []error{
		criterio.Run("config_file", configPath, pathRule(false, true)),
		criterio.Run("data_dir", c.DataDir, pathRule(true, true)),
	}
	if c.LLM.Provider == ProviderScript {
		fields = append(fields, criterio.Run("llm.script_file", c.ScriptPath(), pathRule(false, false)))
	}
	return criterio.ValidateStruct(fields...)
}

// validatePrompts renders every prompt template against placeholder data so
// both syntax errors and unknown fields are reported.
func (c *Config) validatePrompts() error {
	var errs criterio.FieldErrorsBuilder

	checks := []struct {
		field string
		tmpl  string
		data  any
	}{
		{"prompts.system", c.Prompts.System, SystemPromptData{
			BlueprintMarker:  "---BLUEPRINT---",
			OperationsMarker: "---OPERATIONS---",
			Tree:             "index.html",
			Blueprint:        "# App",
			Vars:             c.Vars,
		}},
		{"prompts.user", c.Prompts.User, UserPromptData{Prompt: "test", Selector: "#id", Text: "test", Vars: c.Vars}},
		{"prompts.blueprint", c.Prompts.Blueprint, BlueprintPromptData{Prompt: "test", BlueprintJSON: "{}", Vars: c.Vars}},
		{"prompts.autopilot", c.Prompts.Autopilot, AutopilotPromptData{Tree: "index.html", Errors: []string{"test"}, Vars: c.Vars}},
	}

	for _, check := range checks {
		if _, err := tmpl.Render(check.tmpl, check.data); err != nil {
			errs = errs.Append(check.field, fmt.Errorf("template error: %w", err))
		}
	}

	return errs.ToError()
}
