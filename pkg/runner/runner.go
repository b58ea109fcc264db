package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/sre-norns/wyrd/pkg/manifest"
	"golang.org/x/sync/errgroup"

	"github.com/sre-norns/viewshot/pkg/browser"
	"github.com/sre-norns/viewshot/pkg/devserver"
	"github.com/sre-norns/viewshot/pkg/layout"
	"github.com/sre-norns/viewshot/pkg/prob"
	"github.com/sre-norns/viewshot/pkg/storage"
	"github.com/sre-norns/viewshot/pkg/viewport"
)

const (
	KindCapture = "capture"
	KindCheck   = "check"
)

var (
	ErrNoViewports  = fmt.Errorf("no viewports to capture")
	ErrChecksFailed = fmt.Errorf("layout checks failed")
	ErrNoURL        = fmt.Errorf("no url to open")
	ErrNoBrowser    = fmt.Errorf("failed to launch browser")
)

// Runner drives a single run: server up, wait until ready, browser up, visit viewports, tear everything down
type Runner struct {
	Starter   devserver.Starter
	Launcher  browser.Launcher
	Persister storage.FilePersister
	Logger    log.Logger
	Metrics   *Metrics

	// Human readable progress lines, discarded if nil
	Out io.Writer
}

type RunOptions struct {
	URL    string
	Settle time.Duration

	ReadyKind prob.Kind
	Ready     prob.WaitOptions

	StopTimeout time.Duration
	Labels      manifest.Labels
}

type CaptureOptions struct {
	RunOptions

	Viewports []viewport.Viewport

	// Directory screenshots are reported in, the persister decides where they actually go
	OutputDir string
}

type CheckOptions struct {
	RunOptions

	Checks []layout.Check
}

func (r *Runner) logger() log.Logger {
	if r.Logger == nil {
		return log.NewNopLogger()
	}

	return r.Logger
}

func (r *Runner) metrics() *Metrics {
	if r.Metrics == nil {
		r.Metrics = NewMetrics(nil)
	}

	return r.Metrics
}

func (r *Runner) progress(format string, args ...any) {
	if r.Out == nil {
		return
	}

	color.New(color.FgGreen).Fprintf(r.Out, format+"\n", args...)
}

// Capture takes a screenshot of the page at every viewport, one after another
func (r *Runner) Capture(ctx context.Context, options CaptureOptions) (Report, error) {
	report := r.newReport(KindCapture, options.RunOptions)
	if len(options.Viewports) == 0 {
		return r.finish(report, ErrNoViewports)
	}

	for _, v := range options.Viewports {
		if err := v.Validate(); err != nil {
			return r.finish(report, err)
		}
	}

	err := r.withPage(ctx, options.RunOptions, &report, func(ctx context.Context, page browser.Page, target string) error {
		for _, v := range options.Viewports {
			shot, err := r.captureViewport(ctx, page, target, v, options)
			if err != nil {
				return fmt.Errorf("viewport %v: %w", v, err)
			}

			report.Shots = append(report.Shots, shot)
			r.progress("Captured %s", shot.File)
		}

		return nil
	})

	return r.finish(report, err)
}

func (r *Runner) captureViewport(ctx context.Context, page browser.Page, target string, v viewport.Viewport, options CaptureOptions) (Shot, error) {
	logger := log.With(r.logger(), "viewport", v.Name)
	start := time.Now()

	level.Debug(logger).Log("msg", "resizing viewport", "width", v.Width, "height", v.Height, "touch", v.Touch)
	if err := page.SetViewport(ctx, v); err != nil {
		return Shot{}, err
	}

	if err := page.Navigate(ctx, target); err != nil {
		return Shot{}, err
	}

	if err := page.Settle(ctx, options.Settle); err != nil {
		return Shot{}, err
	}

	data, err := page.Screenshot(ctx)
	if err != nil {
		return Shot{}, err
	}

	if err := r.Persister.Persist(ctx, v.Filename(), bytes.NewReader(data)); err != nil {
		return Shot{}, err
	}

	shot := Shot{
		Viewport: v.Name,
		Width:    v.Width,
		Height:   v.Height,
		File:     filepath.Join(options.OutputDir, v.Filename()),
		Bytes:    len(data),
		Duration: time.Since(start),
	}

	r.metrics().CaptureDuration.WithLabelValues(v.Name).Observe(shot.Duration.Seconds())
	r.metrics().ScreenshotBytes.WithLabelValues(v.Name).Set(float64(shot.Bytes))
	level.Info(logger).Log("msg", "screenshot captured", "file", shot.File, "bytes", shot.Bytes, "duration", shot.Duration)

	return shot, nil
}

// Check renders the page at each check's viewport and compares computed styles
func (r *Runner) Check(ctx context.Context, options CheckOptions) (Report, error) {
	report := r.newReport(KindCheck, options.RunOptions)

	err := r.withPage(ctx, options.RunOptions, &report, func(ctx context.Context, page browser.Page, target string) error {
		results, err := layout.Evaluate(ctx, page, target, options.Settle, options.Checks)
		report.Checks = results

		for _, result := range results {
			r.metrics().Checks.WithLabelValues(result.Viewport.Name, strconv.FormatBool(result.Passed)).Inc()
			if result.Passed {
				r.progress("PASS %s", result.Name)
			} else if r.Out != nil {
				color.New(color.FgRed).Fprintf(r.Out, "FAIL %s: expected %q, got %q (found: %t)\n", result.Name, result.Expect, result.Got, result.Found)
			}
		}

		if err != nil {
			return err
		}

		if failed := layout.Failed(results); len(failed) > 0 {
			return fmt.Errorf("%w: %d of %d", ErrChecksFailed, len(failed), len(results))
		}

		return nil
	})

	return r.finish(report, err)
}

func (r *Runner) newReport(kind string, options RunOptions) Report {
	return Report{
		Kind:      kind,
		URL:       options.URL,
		StartedAt: time.Now(),
		Labels:    options.Labels,
	}
}

func (r *Runner) finish(report Report, err error) (Report, error) {
	report.Duration = time.Since(report.StartedAt)
	report.Status = prob.StatusOf(err)
	if errors.Is(err, ErrChecksFailed) {
		report.Status = prob.RunFinishedFailed
	}
	if err != nil {
		report.Error = err.Error()
	}

	r.metrics().Runs.WithLabelValues(report.Kind, string(report.Status)).Inc()
	level.Info(r.logger()).Log("msg", "run finished", "kind", report.Kind, "status", report.Status, "duration", report.Duration)

	return report, err
}

// withPage acquires the server and the browser, runs fn and releases both on every path.
// The run is aborted as soon as the server exits on its own.
func (r *Runner) withPage(ctx context.Context, options RunOptions, report *Report, fn func(ctx context.Context, page browser.Page, target string) error) (err error) {
	logger := r.logger()
	if options.URL == "" {
		return ErrNoURL
	}

	server, err := r.Starter.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	report.Server = server.Addr()

	defer func() {
		// Stop must happen even when ctx is already canceled
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), options.StopTimeout)
		defer cancel()

		if stopErr := server.Stop(stopCtx); stopErr != nil {
			level.Warn(logger).Log("msg", "failed to stop server", "err", stopErr)
			if err == nil {
				err = stopErr
			}
		}
	}()

	target, err := rebaseURL(options.URL, server.Addr())
	if err != nil {
		return err
	}
	report.URL = target

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		select {
		case <-server.Done():
			return server.Err()
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		defer stop()

		ready, err := r.waitReady(gctx, target, options, server.Done())
		report.Ready = ready
		if err != nil {
			return err
		}

		session, err := r.Launcher.Launch(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoBrowser, err)
		}
		defer func() {
			if closeErr := session.Close(); closeErr != nil {
				level.Warn(logger).Log("msg", "failed to close browser", "err", closeErr)
			}
		}()

		return fn(gctx, session.Page(), target)
	})

	err = g.Wait()
	if errors.Is(err, prob.ErrAborted) {
		if serverErr := server.Err(); serverErr != nil {
			err = serverErr
		}
	}

	return err
}

func (r *Runner) waitReady(ctx context.Context, target string, options RunOptions, abort <-chan struct{}) (prob.WaitResult, error) {
	kind := options.ReadyKind
	if kind == "" {
		kind = prob.Kind("http")
	}

	spec, err := prob.NewSpec(kind, target)
	if err != nil {
		return prob.WaitResult{Kind: kind, Status: prob.RunFinishedError}, err
	}

	waitOptions := options.Ready
	waitOptions.Abort = abort

	level.Info(r.logger()).Log("msg", "waiting for server", "target", target, "probe", kind, "max_wait", waitOptions.MaxWait)
	result, err := prob.WaitReady(ctx, kind, spec, waitOptions, r.logger())
	r.metrics().observeReady(result)
	if err != nil {
		return result, err
	}

	level.Info(r.logger()).Log("msg", "server is ready", "attempts", result.Attempts, "elapsed", result.Elapsed)
	return result, nil
}

// rebaseURL points the path and query of target at the server when the server reports its own base URL
func rebaseURL(target, serverAddr string) (string, error) {
	if !strings.HasPrefix(serverAddr, "http://") && !strings.HasPrefix(serverAddr, "https://") {
		return target, nil
	}

	base, err := url.Parse(serverAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", serverAddr, err)
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}

	u.Scheme = base.Scheme
	u.Host = base.Host
	return u.String(), nil
}
