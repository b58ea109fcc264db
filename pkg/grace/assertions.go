package grace

import (
	"errors"
	"fmt"
)

// Error is a failure a user can act on
type Error interface {
	error

	WhatExpected() string
	WhatHappened() string
	WhatToDo() string
}

type ActionableError struct {
	expected     string
	got          string
	callToAction string

	// Output captured around the failure, printed after the error
	details string
	cause   error
}

func (e *ActionableError) WhatExpected() string {
	return e.expected
}

func (e *ActionableError) WhatHappened() string {
	return e.got
}

func (e *ActionableError) WhatToDo() string {
	return e.callToAction
}

func (e *ActionableError) Details() string {
	return e.details
}

func (e *ActionableError) Error() string {
	return fmt.Sprintf("expected: %s, got: %s; What to do: %s", e.expected, e.got, e.callToAction)
}

func (e *ActionableError) Unwrap() error {
	return e.cause
}

// WithDetails attaches output, such as a log tail, to be shown along with the error
func (e *ActionableError) WithDetails(details string) *ActionableError {
	e.details = details
	return e
}

func RaiseError(
	expected, got, cta string,
) Error {
	return &ActionableError{
		expected:     expected,
		got:          got,
		callToAction: cta,
	}
}

// Wrap explains cause to a user. What happened is the message of the cause itself.
func Wrap(cause error, expected, cta string) *ActionableError {
	got := "<nil>"
	if cause != nil {
		got = cause.Error()
	}

	return &ActionableError{
		expected:     expected,
		got:          got,
		callToAction: cta,
		cause:        cause,
	}
}

// AsError finds the first actionable error in the chain
func AsError(err error) (*ActionableError, bool) {
	var target *ActionableError
	if errors.As(err, &target) {
		return target, true
	}

	return nil, false
}
