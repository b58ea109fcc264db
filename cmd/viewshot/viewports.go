package main

import (
	"github.com/sre-norns/viewshot/pkg/viewport"
)

type ViewportsCmd struct {
	Name string `arg:"" optional:"" help:"Show only the viewport with this name"`
}

func (c *ViewportsCmd) Run(cfg *commandContext) error {
	if c.Name == "" {
		return cfg.OutputFormatter(cfg.Out, viewport.Defaults())
	}

	v, err := viewport.Find(c.Name)
	if err != nil {
		return err
	}

	return cfg.OutputFormatter(cfg.Out, []viewport.Viewport{v})
}
