package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sre-norns/viewshot/pkg/browser"
	"github.com/sre-norns/viewshot/pkg/devserver"
	"github.com/sre-norns/viewshot/pkg/grace"
	"github.com/sre-norns/viewshot/pkg/prob"
	"github.com/sre-norns/viewshot/pkg/runner"
	"github.com/sre-norns/viewshot/pkg/storage"
)

// RunFlags are shared by every command that starts a server and a browser
type RunFlags struct {
	URL    string        `help:"Page to open once the server is ready" default:"http://localhost:5173" env:"VIEWSHOT_URL"`
	Settle time.Duration `help:"How long to let the page render after it loads" default:"2s" env:"VIEWSHOT_SETTLE"`
	Labels []string      `help:"Extra key=value labels recorded in the report" name:"label" short:"l"`

	ShowMetrics bool   `help:"Print run metrics in the Prometheus text format after the report"`
	OpenMetrics bool   `help:"Use the OpenMetrics format for --show-metrics"`
	PushGateway string `help:"Push run metrics to this Prometheus Pushgateway" env:"VIEWSHOT_PUSH_GATEWAY"`

	Server  runner.ServerOptions `embed:""`
	Ready   runner.ReadyOptions  `embed:""`
	Browser browser.Options      `embed:""`
}

type runSetup struct {
	runner   *runner.Runner
	runLog   *runner.RunLog
	registry *prometheus.Registry
	options  runner.RunOptions
}

func (f *RunFlags) setup(cfg *commandContext, outputDir string) (runSetup, error) {
	withNode := !f.Server.NoServer && f.Server.StaticDir == ""
	labels, err := runner.RuntimeLabels(cfg.Context, withNode, f.Labels...)
	if err != nil {
		return runSetup{}, err
	}

	registry := prometheus.NewRegistry()
	runLog := runner.NewRunLog(cfg.Logger, runner.DefaultTailLines)

	return runSetup{
		runner: &runner.Runner{
			Starter:   f.Server.Starter(runLog, cfg.Logger),
			Launcher:  browser.Chromium{Options: f.Browser, Logger: cfg.Logger},
			Persister: &storage.LocalFilePersister{BaseDir: outputDir},
			Logger:    cfg.Logger,
			Metrics:   runner.NewMetrics(registry),
			Out:       cfg.Out,
		},
		runLog:   runLog,
		registry: registry,
		options: runner.RunOptions{
			URL:         f.URL,
			Settle:      f.Settle,
			ReadyKind:   f.Ready.Kind(),
			Ready:       f.Ready.WaitOptions(),
			StopTimeout: f.Server.StopTimeout,
			Labels:      labels,
		},
	}, nil
}

// finish prints the report and metrics, then turns err into something a user can act on
func (f *RunFlags) finish(cfg *commandContext, s runSetup, report runner.Report, err error) error {
	s.runLog.Flush()

	if formatErr := cfg.OutputFormatter(cfg.Out, report); formatErr != nil {
		level.Warn(cfg.Logger).Log("msg", "failed to print report", "err", formatErr)
	}

	gatherers := prometheus.Gatherers{s.registry}
	if report.Ready.Registry != nil {
		gatherers = append(gatherers, report.Ready.Registry)
	}

	if f.ShowMetrics {
		data, _, metricsErr := runner.MetricsText(gatherers, runner.RegistryOptions{EnableOpenMetrics: f.OpenMetrics})
		if metricsErr != nil {
			level.Warn(cfg.Logger).Log("msg", "failed to render metrics", "err", metricsErr)
		} else {
			cfg.Out.Write(data)
		}
	}

	if f.PushGateway != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.Context), 10*time.Second)
		defer cancel()

		if pushErr := runner.PushMetrics(pushCtx, f.PushGateway, "viewshot", gatherers, map[string]string{"kind": report.Kind}); pushErr != nil {
			level.Warn(cfg.Logger).Log("msg", "failed to push metrics", "err", pushErr)
		}
	}

	return f.explain(err, s.runLog)
}

func (f *RunFlags) explain(err error, runLog *runner.RunLog) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, prob.ErrNotReady):
		return grace.Wrap(err,
			fmt.Sprintf("the server to answer on %s within %v", f.URL, f.Ready.Timeout),
			"check that --url matches the port the server listens on, or raise --ready-timeout",
		).WithDetails(runLog.String())
	case errors.Is(err, devserver.ErrServerExited):
		return grace.Wrap(err,
			"the server to keep running until all screenshots are taken",
			fmt.Sprintf("run %q by hand to see why it stops", f.Server.Command),
		).WithDetails(runLog.String())
	case errors.Is(err, exec.ErrNotFound):
		return grace.Wrap(err,
			fmt.Sprintf("%q to be installed", f.Server.Command),
			"install the project dependencies or pass --server-cmd",
		)
	case errors.Is(err, runner.ErrNoBrowser):
		return grace.Wrap(err,
			"Chrome or Chromium to start",
			"install Chrome or point --chrome-path at it, add --no-sandbox when running in a container",
		)
	}

	return err
}
