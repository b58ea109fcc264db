package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/sre-norns/viewshot/pkg/viewport"
)

const maxTouchPoints = 5

type Options struct {
	Headless bool `help:"Run the browser without a window" default:"true" negatable:"" env:"VIEWSHOT_HEADLESS"`

	ExecPath  string   `help:"Chrome/Chromium binary, found on PATH if empty" name:"chrome-path" env:"VIEWSHOT_CHROME_PATH"`
	NoSandbox bool     `help:"Disable the Chromium sandbox, often required in containers" env:"VIEWSHOT_NO_SANDBOX"`
	Flags     []string `help:"Extra Chromium command line switches, name=value" name:"chrome-flag"`

	// Limit for a single browser operation
	ActionTimeout time.Duration `help:"Maximum duration of a single browser action" default:"30s"`
}

// Chromium launches a local Chrome/Chromium and speaks CDP to it
type Chromium struct {
	Options Options
	Logger  log.Logger
}

type chromiumSession struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	page   *chromiumPage
	logger log.Logger

	closeOnce sync.Once
	closeErr  error
}

type chromiumPage struct {
	tabCtx  context.Context
	timeout time.Duration
}

func (c Chromium) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
	)

	if !c.Options.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if c.Options.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.Options.ExecPath))
	}

	if c.Options.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	for _, flag := range c.Options.Flags {
		name, value, hasValue := cutFlag(flag)
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	return opts
}

func cutFlag(flag string) (string, string, bool) {
	for len(flag) > 0 && flag[0] == '-' {
		flag = flag[1:]
	}

	for i := 0; i < len(flag); i++ {
		if flag[i] == '=' {
			return flag[:i], flag[i+1:], true
		}
	}

	return flag, "", false
}

// Launch starts the browser and opens a blank page.
// The browser is tied to ctx: it is killed when ctx is done, Close shuts it down gracefully.
func (c Chromium) Launch(ctx context.Context) (Session, error) {
	logger := c.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			level.Debug(logger).Log("msg", fmt.Sprintf(format, args...), "source", "chromedp")
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			level.Debug(logger).Log("msg", fmt.Sprintf(format, args...), "source", "chromedp", "kind", "error")
		}),
	)

	// First run starts the browser and opens a tab
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	session := &chromiumSession{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
		page: &chromiumPage{
			tabCtx:  browserCtx,
			timeout: c.Options.ActionTimeout,
		},
	}

	level.Info(logger).Log("msg", "browser started", "headless", c.Options.Headless)

	return session, nil
}

func (s *chromiumSession) Page() Page {
	return s.page
}

func (s *chromiumSession) Close() error {
	s.closeOnce.Do(func() {
		// Cancel closes the browser gracefully, waiting for it to exit
		s.closeErr = chromedp.Cancel(s.browserCtx)
		s.browserCancel()
		s.allocCancel()

		if s.closeErr != nil {
			level.Warn(s.logger).Log("msg", "browser did not close cleanly", "err", s.closeErr)
		} else {
			level.Info(s.logger).Log("msg", "browser closed")
		}
	})

	return s.closeErr
}

// run executes actions on the tab, bounded by the action timeout and by the caller's ctx
func (p *chromiumPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := p.tabCtx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.tabCtx, p.timeout)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

func (p *chromiumPage) SetViewport(ctx context.Context, v viewport.Viewport) error {
	if err := v.Validate(); err != nil {
		return err
	}

	metrics, touch := emulationFor(v)
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := metrics.Do(ctx); err != nil {
			return fmt.Errorf("failed to set device metrics: %w", err)
		}

		if err := touch.Do(ctx); err != nil {
			return fmt.Errorf("failed to set touch emulation: %w", err)
		}

		return nil
	}))
}

// emulationFor returns the CDP commands resizing the page to v.
// It is a plain window resize: mobile emulation stays off, touch viewports only get touch input.
func emulationFor(v viewport.Viewport) (*emulation.SetDeviceMetricsOverrideParams, *emulation.SetTouchEmulationEnabledParams) {
	metrics := emulation.SetDeviceMetricsOverride(v.Width, v.Height, 1, false)

	touch := emulation.SetTouchEmulationEnabled(v.Touch)
	if v.Touch {
		touch = touch.WithMaxTouchPoints(maxTouchPoints)
	}

	return metrics, touch
}

func (p *chromiumPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromiumPage) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *chromiumPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithFromSurface(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	return buf, nil
}

const computedStyleJS = `(() => {
	const el = document.querySelector('[data-testid="' + CSS.escape(%s) + '"]');
	if (!el) { return {found: false, value: ""}; }
	return {found: true, value: getComputedStyle(el).getPropertyValue(%s)};
})()`

type computedStyle struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (p *chromiumPage) ComputedStyle(ctx context.Context, testID, property string) (string, bool, error) {
	quotedID, err := json.Marshal(testID)
	if err != nil {
		return "", false, err
	}

	quotedProperty, err := json.Marshal(property)
	if err != nil {
		return "", false, err
	}

	var result computedStyle
	script := fmt.Sprintf(computedStyleJS, quotedID, quotedProperty)
	if err := p.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return "", false, fmt.Errorf("failed to read computed style %q of %q: %w", property, testID, err)
	}

	return result.Value, result.Found, nil
}
