package browser

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/sre-norns/viewshot/pkg/viewport"
)

func TestCutFlag(t *testing.T) {
	testCases := map[string]struct {
		given       string
		expectName  string
		expectValue string
		expectHas   bool
	}{
		"bare":         {given: "disable-gpu", expectName: "disable-gpu"},
		"dashes":       {given: "--disable-gpu", expectName: "disable-gpu"},
		"value":        {given: "--lang=en-US", expectName: "lang", expectValue: "en-US", expectHas: true},
		"empty-value":  {given: "proxy-server=", expectName: "proxy-server", expectHas: true},
		"equals-value": {given: "js-flags=--a=b", expectName: "js-flags", expectValue: "--a=b", expectHas: true},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			name, value, has := cutFlag(test.given)
			require.Equal(t, test.expectName, name)
			require.Equal(t, test.expectValue, value)
			require.Equal(t, test.expectHas, has)
		})
	}
}

func TestEmulationFor(t *testing.T) {
	testCases := map[string]struct {
		given             string
		expectTouch       bool
		expectTouchPoints int64
	}{
		"ultrawide": {given: "ultrawide"},
		"desktop":   {given: "desktop"},
		"mobile":    {given: "mobile", expectTouch: true, expectTouchPoints: maxTouchPoints},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			v, err := viewport.Find(test.given)
			require.NoError(t, err)

			metrics, touch := emulationFor(v)
			require.Equal(t, v.Width, metrics.Width)
			require.Equal(t, v.Height, metrics.Height)
			require.Equal(t, float64(1), metrics.DeviceScaleFactor)
			require.False(t, metrics.Mobile, "a viewport is a plain resize, not a mobile device")
			require.Nil(t, metrics.ScreenOrientation)

			require.Equal(t, test.expectTouch, touch.Enabled)
			require.Equal(t, test.expectTouchPoints, touch.MaxTouchPoints)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := len(Chromium{Options: Options{Headless: true}}.allocatorOptions())

	extended := Chromium{Options: Options{
		Headless:  false,
		ExecPath:  "/usr/bin/chromium",
		NoSandbox: true,
		Flags:     []string{"lang=en-US"},
	}}.allocatorOptions()

	require.Equal(t, base+4, len(extended))
}

func findChrome(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("browser tests are skipped in short mode")
	}

	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	t.Skip("no Chrome/Chromium found on PATH")
	return ""
}

const testPage = `<!doctype html>
<html><body style="margin:0">
<div data-testid="card-rank-suit" style="display:flex;flex-direction:column"><span>A</span><span>&spades;</span></div>
</body></html>`

func TestChromium_Integration(t *testing.T) {
	chrome := findChrome(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, testPage)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	session, err := Chromium{
		Options: Options{Headless: true, ExecPath: chrome, NoSandbox: true, ActionTimeout: 30 * time.Second},
		Logger:  log.NewNopLogger(),
	}.Launch(ctx)
	require.NoError(t, err)
	defer session.Close()

	page := session.Page()
	mobile, err := viewport.Find("mobile")
	require.NoError(t, err)

	require.NoError(t, page.SetViewport(ctx, mobile))
	require.NoError(t, page.Navigate(ctx, server.URL))
	require.NoError(t, page.Settle(ctx, 10*time.Millisecond))

	value, found, err := page.ComputedStyle(ctx, "card-rank-suit", "flex-direction")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "column", value)

	_, found, err = page.ComputedStyle(ctx, "missing", "flex-direction")
	require.NoError(t, err)
	require.False(t, found)

	data, err := page.Screenshot(ctx)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int(mobile.Width), cfg.Width)
	require.Equal(t, int(mobile.Height), cfg.Height)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
}

func TestSettle_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &chromiumPage{}
	require.ErrorIs(t, p.Settle(ctx, time.Minute), context.Canceled)
	require.NoError(t, p.Settle(context.Background(), 0))
}
