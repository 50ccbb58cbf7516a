package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/colonyops/kiln/internal/core/config"
	"github.com/colonyops/kiln/internal/core/llm"
)

// Swapped in tests.
var lookupEnv = os.LookupEnv

// ModelCheck verifies that the configured generator has what it needs to
// answer a prompt.
type ModelCheck struct {
	cfg *config.Config
}

func NewModelCheck(cfg *config.Config) *ModelCheck {
	return &ModelCheck{cfg: cfg}
}

func (c *ModelCheck) Name() string { return "Model" }

func (c *ModelCheck) Run(_ context.Context) Result {
	res := Result{Name: c.Name()}
	l := c.cfg.LLM

	if l.Provider == config.ProviderScript {
		path := c.cfg.ScriptPath()
		if _, err := llm.LoadScript(path); err != nil {
			res.Add(Fail("script", err.Error()))
		} else {
			res.Add(Pass("script", path))
		}
		return res
	}

	model := l.Model
	if model == "" {
		model = llm.DefaultGeminiModel
	}
	res.Add(Pass("provider", fmt.Sprintf("%s (%s)", l.Provider, model)))

	if v, ok := lookupEnv(l.APIKeyEnv); ok && v != "" {
		res.Add(Pass(l.APIKeyEnv, "set"))
	} else {
		res.Add(Fail(l.APIKeyEnv, "not set; every prompt will fail"))
	}
	return res
}
