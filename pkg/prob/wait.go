package prob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sre-norns/wyrd/pkg/manifest"
)

type WaitOptions struct {
	// Give up once the target has not become ready for this long. Zero means wait until ctx is done.
	MaxWait time.Duration

	// Backoff between attempts
	MinInterval time.Duration
	MaxInterval time.Duration
	Factor      float64
	Jitter      bool

	// Upper bound on a single attempt
	AttemptTimeout time.Duration

	// Closed when waiting is pointless, e.g. the process serving the target exited
	Abort <-chan struct{}
}

func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		MaxWait:        30 * time.Second,
		MinInterval:    100 * time.Millisecond,
		MaxInterval:    2 * time.Second,
		Factor:         2,
		AttemptTimeout: 5 * time.Second,
	}
}

type WaitResult struct {
	Kind     Kind          `json:"kind" yaml:"kind"`
	Attempts int           `json:"attempts" yaml:"attempts"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	Status   RunStatus     `json:"status" yaml:"status"`

	// Reason the last failed attempt reported, if any
	LastFailure string `json:"lastFailure,omitempty" yaml:"lastFailure,omitempty"`

	// Metrics produced by the last attempt
	Registry *prometheus.Registry `json:"-" yaml:"-"`
}

// WaitReady polls the target with the given kind of probe until it reports success,
// backing off exponentially between attempts.
func WaitReady(ctx context.Context, kind Kind, spec any, options WaitOptions, logger log.Logger) (WaitResult, error) {
	result := WaitResult{Kind: kind}

	run, ok := FindRunFunc(kind)
	if !ok {
		result.Status = RunFinishedError
		return result, fmt.Errorf("%w: %q", manifest.ErrUnknownKind, kind)
	}

	waitCtx := ctx
	if options.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, options.MaxWait)
		defer cancel()
	}

	b := &backoff.Backoff{
		Min:    options.MinInterval,
		Max:    options.MaxInterval,
		Factor: options.Factor,
		Jitter: options.Jitter,
	}

	start := time.Now()
	var lastErr error
	for {
		result.Attempts++
		registry := prometheus.NewRegistry()
		attemptLogger := &failureRecorder{next: logger}

		attemptCtx, attemptCancel := waitCtx, context.CancelFunc(func() {})
		if options.AttemptTimeout > 0 {
			attemptCtx, attemptCancel = context.WithTimeout(waitCtx, options.AttemptTimeout)
		}
		status, err := run(attemptCtx, spec, registry, attemptLogger)
		attemptCancel()

		result.Status = status
		result.Registry = registry
		result.Elapsed = time.Since(start)
		if status == RunFinishedSuccess {
			level.Debug(logger).Log("msg", "target is ready", "kind", kind, "attempts", result.Attempts, "elapsed", result.Elapsed)
			return result, nil
		}

		lastErr = err
		if reason := attemptLogger.Failure(); reason != "" {
			result.LastFailure = reason
		} else if err != nil {
			result.LastFailure = err.Error()
		}

		delay := b.Duration()
		level.Debug(logger).Log("msg", "target is not ready", "kind", kind, "attempt", result.Attempts, "status", status, "retry_in", delay, "reason", result.LastFailure)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			continue
		case <-options.Abort:
			timer.Stop()
			result.Status = RunFinishedError
			return result, ErrAborted
		case <-waitCtx.Done():
			timer.Stop()
		}

		result.Elapsed = time.Since(start)
		if ctx.Err() != nil {
			result.Status = StatusOf(ctx.Err())
			return result, ctx.Err()
		}

		result.Status = RunFinishedTimeout
		if lastErr != nil {
			return result, fmt.Errorf("%w after %d attempt(s) in %v: %w", ErrNotReady, result.Attempts, result.Elapsed.Round(time.Millisecond), lastErr)
		}

		return result, fmt.Errorf("%w after %d attempt(s) in %v", ErrNotReady, result.Attempts, result.Elapsed.Round(time.Millisecond))
	}
}

// failureRecorder forwards probe logs at debug level, a target that is not up yet is expected while polling,
// and remembers the last error reported so it can be shown once the wait is over.
type failureRecorder struct {
	next log.Logger

	lock    sync.Mutex
	failure string
}

func (l *failureRecorder) Log(keyvals ...any) error {
	forward := make([]any, 0, len(keyvals))
	isError := false
	var msg, errText string

	for i := 0; i+1 < len(keyvals); i += 2 {
		if lvl, ok := keyvals[i+1].(level.Value); ok {
			isError = lvl == level.ErrorValue()
			continue
		}

		switch fmt.Sprint(keyvals[i]) {
		case "msg":
			msg = fmt.Sprint(keyvals[i+1])
		case "err":
			errText = fmt.Sprint(keyvals[i+1])
		}
		forward = append(forward, keyvals[i], keyvals[i+1])
	}

	if isError {
		l.lock.Lock()
		l.failure = strings.TrimSpace(strings.Join(nonEmpty(msg, errText), ": "))
		l.lock.Unlock()
	}

	return level.Debug(l.next).Log(forward...)
}

func (l *failureRecorder) Failure() string {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.failure
}

func nonEmpty(values ...string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			result = append(result, v)
		}
	}

	return result
}
