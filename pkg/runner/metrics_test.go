package runner_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"

	"github.com/sre-norns/viewshot/pkg/runner"
)

func newObservedRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	registry := prometheus.NewRegistry()
	metrics := runner.NewMetrics(registry)
	metrics.Runs.WithLabelValues(runner.KindCapture, "success").Inc()
	metrics.ScreenshotBytes.WithLabelValues("mobile").Set(1234)
	metrics.ReadyAttempts.Add(3)
	metrics.ReadyWait.Set((1500 * time.Millisecond).Seconds())

	return registry
}

func TestMetricsText(t *testing.T) {
	testCases := map[string]struct {
		options      runner.RegistryOptions
		expectFormat expfmt.Format
		expectEOF    bool
	}{
		"text": {
			options:      runner.RegistryOptions{},
			expectFormat: expfmt.NewFormat(expfmt.TypeTextPlain),
		},
		"openmetrics": {
			options:      runner.RegistryOptions{EnableOpenMetrics: true},
			expectFormat: expfmt.NewFormat(expfmt.TypeOpenMetrics),
			expectEOF:    true,
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			data, format, err := runner.MetricsText(newObservedRegistry(t), test.options)
			require.NoError(t, err)
			require.Equal(t, test.expectFormat, format)

			text := string(data)
			require.Contains(t, text, `viewshot_screenshot_bytes{viewport="mobile"} 1234`)
			require.Contains(t, text, "viewshot_ready_wait_seconds 1.5")
			require.Equal(t, test.expectEOF, strings.HasSuffix(text, "# EOF\n"))
		})
	}
}

func TestNewMetrics_Unregistered(t *testing.T) {
	metrics := runner.NewMetrics(nil)
	require.NotPanics(t, func() {
		metrics.Runs.WithLabelValues(runner.KindCheck, "failed").Inc()
	})
}

func TestPushMetrics(t *testing.T) {
	var gotPath, gotBody string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	err := runner.PushMetrics(context.Background(), gateway.URL, "viewshot", newObservedRegistry(t), map[string]string{"viewport_set": "default"})
	require.NoError(t, err)
	require.Equal(t, "/metrics/job/viewshot/viewport_set/default", gotPath)
	require.NotEmpty(t, gotBody)
}

func TestPushMetrics_GatewayError(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	err := runner.PushMetrics(context.Background(), gateway.URL, "viewshot", newObservedRegistry(t), nil)
	require.ErrorContains(t, err, gateway.URL)
}
