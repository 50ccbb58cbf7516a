package doctor

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/kiln/internal/core/config"
)

// ConfigCheck runs deep configuration validation and surfaces warnings.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: configPath}
}

func (c *ConfigCheck) Name() string { return "Configuration" }

func (c *ConfigCheck) Run(_ context.Context) Result {
	res := Result{Name: c.Name()}

	if err := c.cfg.ValidateDeep(c.path); err != nil {
		var fields criterio.FieldErrors
		if errors.As(err, &fields) {
			for _, fe := range fields {
				res.Add(Fail(fe.Field, fe.Err.Error()))
			}
		} else {
			res.Add(Fail("config", err.Error()))
		}
	}

	for _, w := range c.cfg.Warnings() {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		res.Add(Warn(label, w.Message))
	}

	if len(res.Items) == 0 {
		res.Add(Pass("config", "valid"))
	}
	return res
}
