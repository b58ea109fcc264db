package main

import (
	"github.com/sre-norns/viewshot/pkg/grace"
	"github.com/sre-norns/viewshot/pkg/layout"
	"github.com/sre-norns/viewshot/pkg/runner"
)

type CheckCmd struct {
	RunFlags `embed:""`

	Expect     []string `help:"Extra computed style to expect at every layout viewport, testid:property=value" placeholder:"TESTID:PROPERTY=VALUE"`
	NoDefaults bool     `help:"Only run the checks given with --expect"`
}

func (c *CheckCmd) checks() ([]layout.Check, error) {
	var checks []layout.Check
	if !c.NoDefaults {
		checks = layout.Defaults()
	}

	expectations := make([]layout.Expectation, 0, len(c.Expect))
	for _, value := range c.Expect {
		e, err := layout.ParseExpectation(value)
		if err != nil {
			return nil, err
		}

		expectations = append(expectations, e)
	}

	checks = append(checks, layout.Expand(expectations)...)
	if len(checks) == 0 {
		return nil, grace.RaiseError(
			"at least one layout check",
			"--no-defaults without any --expect",
			"add --expect testid:property=value or drop --no-defaults",
		)
	}

	return checks, nil
}

func (c *CheckCmd) Run(cfg *commandContext) error {
	checks, err := c.checks()
	if err != nil {
		return err
	}

	// No screenshots are written by checks
	setup, err := c.setup(cfg, ".")
	if err != nil {
		return err
	}

	report, err := setup.runner.Check(cfg.Context, runner.CheckOptions{
		RunOptions: setup.options,
		Checks:     checks,
	})

	return c.finish(cfg, setup, report, err)
}
