package main

import (
	"github.com/sre-norns/viewshot/pkg/grace"
	"github.com/sre-norns/viewshot/pkg/prob"
	"github.com/sre-norns/viewshot/pkg/runner"
)

type ProbeCmd struct {
	URL   string              `help:"URL to wait for" default:"http://localhost:5173" env:"VIEWSHOT_URL"`
	Ready runner.ReadyOptions `embed:""`
}

func (c *ProbeCmd) Run(cfg *commandContext) error {
	spec, err := prob.NewSpec(c.Ready.Kind(), c.URL)
	if err != nil {
		return err
	}

	result, err := prob.WaitReady(cfg.Context, c.Ready.Kind(), spec, c.Ready.WaitOptions(), cfg.Logger)
	if formatErr := cfg.OutputFormatter(cfg.Out, result); formatErr != nil {
		return formatErr
	}

	if err != nil {
		return grace.Wrap(err,
			c.URL+" to be ready",
			"start the server first, or raise --ready-timeout",
		)
	}

	return nil
}
