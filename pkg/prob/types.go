package prob

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a registered family of readiness probes: tcp, http, etc
type Kind string

// RunStatus represents the state of a probe or a run once it has been executed
type RunStatus string

const (
	RunNotFinished      RunStatus = ""
	RunFinishedSuccess  RunStatus = "success"
	RunFinishedFailed   RunStatus = "failed"
	RunFinishedError    RunStatus = "errored"
	RunFinishedCanceled RunStatus = "canceled"
	RunFinishedTimeout  RunStatus = "timeout"
)

var (
	ErrNilRunner = fmt.Errorf("prob run function is nil")
	ErrNoTarget  = fmt.Errorf("empty prob.target value")
	ErrNotReady  = fmt.Errorf("target is not ready")
	ErrAborted   = fmt.Errorf("waiting for target aborted")
)

// StatusOf maps an error returned by a run into the final status of that run
func StatusOf(err error) RunStatus {
	switch {
	case err == nil:
		return RunFinishedSuccess
	case errors.Is(err, context.Canceled):
		return RunFinishedCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrNotReady):
		return RunFinishedTimeout
	}

	return RunFinishedError
}
