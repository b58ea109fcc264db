package runner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"

	"github.com/sre-norns/viewshot/pkg/prob"
)

const metricsNamespace = "viewshot"

type Metrics struct {
	Runs            *prometheus.CounterVec
	CaptureDuration *prometheus.HistogramVec
	ScreenshotBytes *prometheus.GaugeVec
	ReadyAttempts   prometheus.Counter
	ReadyWait       prometheus.Gauge
	Checks          *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Runs by kind and final status",
		}, []string{"kind", "status"}),
		CaptureDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "capture_duration_seconds",
			Help:      "Time to resize, load, settle and capture a viewport",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 30},
		}, []string{"viewport"}),
		ScreenshotBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "screenshot_bytes",
			Help:      "Size of the last PNG captured per viewport",
		}, []string{"viewport"}),
		ReadyAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ready_attempts_total",
			Help:      "Readiness probes sent to the server under test",
		}),
		ReadyWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ready_wait_seconds",
			Help:      "Time the server under test took to become ready",
		}),
		Checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "layout_checks_total",
			Help:      "Layout checks by viewport and outcome",
		}, []string{"viewport", "passed"}),
	}

	if registerer != nil {
		registerer.MustRegister(m.Runs, m.CaptureDuration, m.ScreenshotBytes, m.ReadyAttempts, m.ReadyWait, m.Checks)
	}

	return m
}

func (m *Metrics) observeReady(result prob.WaitResult) {
	m.ReadyAttempts.Add(float64(result.Attempts))
	m.ReadyWait.Set(result.Elapsed.Seconds())
}

type RegistryOptions struct {
	EnableOpenMetrics bool
}

// MetricsText renders everything the gatherer collects in the Prometheus exposition format
func MetricsText(gatherer prometheus.Gatherer, opts RegistryOptions) ([]byte, expfmt.Format, error) {
	mfs, err := gatherer.Gather()
	if err != nil {
		return nil, "", err
	}

	contentType := expfmt.NewFormat(expfmt.TypeTextPlain)
	if opts.EnableOpenMetrics {
		contentType = expfmt.NewFormat(expfmt.TypeOpenMetrics)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, contentType)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return nil, contentType, fmt.Errorf("failed to encode metrics family %q: %w", mf.GetName(), err)
		}
	}

	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			return nil, contentType, err
		}
	}

	return buf.Bytes(), contentType, nil
}

// PushMetrics sends gathered metrics to a Prometheus Pushgateway, grouped by the given labels
func PushMetrics(ctx context.Context, gatewayURL, job string, gatherer prometheus.Gatherer, grouping map[string]string) error {
	pusher := push.New(gatewayURL, job).Gatherer(gatherer)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %q: %w", gatewayURL, err)
	}

	return nil
}
