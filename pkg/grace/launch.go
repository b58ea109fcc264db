package grace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

const (
	ExitOK      = 0
	ExitFailure = 1

	// Conventional code for a process stopped by SIGINT
	ExitInterrupted = 130
)

// SetupSignalHandler returns a context that is canceled on the first SIGINT or SIGTERM.
// A second signal kills the process with the default behavior.
func SetupSignalHandler() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	return ctx
}

// Report prints err for a human and returns the exit code a process should finish with
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	actionable, ok := AsError(err)
	if !ok {
		fmt.Fprintf(w, "%s %v\n", color.RedString("Error:"), err)
		return ExitFailure
	}

	fmt.Fprintf(w, "%s %s\n", color.RedString("Error:"), actionable.WhatHappened())
	fmt.Fprintf(w, "  expected:   %s\n", actionable.WhatExpected())
	fmt.Fprintf(w, "  what to do: %s\n", color.YellowString(actionable.WhatToDo()))
	if details := actionable.Details(); details != "" {
		fmt.Fprintf(w, "\n%s\n", details)
	}

	return ExitFailure
}

// ExitOrLog terminates the process with a non-zero code if err is a failure.
// Cancellation is not a failure worth reporting.
func ExitOrLog(err error) {
	if code := Report(os.Stderr, err); code != ExitOK {
		os.Exit(code)
	}
}
