package main

import (
	"github.com/sre-norns/viewshot/pkg/runner"
	"github.com/sre-norns/viewshot/pkg/viewport"
)

type CaptureCmd struct {
	RunFlags `embed:""`

	OutputDir string `help:"Directory the screenshots are written to" default:"." type:"path" env:"VIEWSHOT_OUTPUT_DIR"`
}

func (c *CaptureCmd) Run(cfg *commandContext) error {
	setup, err := c.setup(cfg, c.OutputDir)
	if err != nil {
		return err
	}

	report, err := setup.runner.Capture(cfg.Context, runner.CaptureOptions{
		RunOptions: setup.options,
		Viewports:  viewport.Defaults(),
		OutputDir:  c.OutputDir,
	})

	return c.finish(cfg, setup, report, err)
}
