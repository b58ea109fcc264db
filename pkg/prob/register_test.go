package prob_test

import (
	"context"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sre-norns/viewshot/pkg/prob"
	"github.com/sre-norns/wyrd/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func noopProbe(context.Context, any, *prometheus.Registry, log.Logger) (prob.RunStatus, error) {
	return prob.RunFinishedSuccess, nil
}

func TestRegisterProbKind(t *testing.T) {
	kind := prob.Kind("test-register")

	require.ErrorIs(t, prob.RegisterProbKind(kind, prob.ProbRegistration{}), prob.ErrNilRunner)

	_, ok := prob.FindRunFunc(kind)
	require.False(t, ok)

	require.NoError(t, prob.RegisterProbKind(kind, prob.ProbRegistration{RunFunc: noopProbe}))
	defer prob.UnregisterProbKind(kind)

	run, ok := prob.FindRunFunc(kind)
	require.True(t, ok)
	require.NotNil(t, run)
	require.Contains(t, prob.ListKinds(), kind)

	// Modifying the copy must not affect the registry
	probs := prob.ListProbs()
	delete(probs, kind)
	_, ok = prob.FindRunFunc(kind)
	require.True(t, ok)
}

func TestNewSpec(t *testing.T) {
	type spec struct {
		Target string
	}

	plain := prob.Kind("test-plain-spec")
	custom := prob.Kind("test-custom-spec")
	require.NoError(t, prob.RegisterProbKind(plain, prob.ProbRegistration{RunFunc: noopProbe}))
	defer prob.UnregisterProbKind(plain)
	require.NoError(t, prob.RegisterProbKind(custom, prob.ProbRegistration{
		RunFunc: noopProbe,
		NewSpec: func(target string) (any, error) { return &spec{Target: target}, nil },
	}))
	defer prob.UnregisterProbKind(custom)

	testCases := map[string]struct {
		kind        prob.Kind
		target      string
		expect      any
		expectError error
	}{
		"unknown-kind": {
			kind:        prob.Kind("test-not-registered"),
			target:      "localhost:80",
			expectError: manifest.ErrUnknownKind,
		},
		"no-target": {
			kind:        plain,
			expectError: prob.ErrNoTarget,
		},
		"plain": {
			kind:   plain,
			target: "localhost:80",
			expect: "localhost:80",
		},
		"custom": {
			kind:   custom,
			target: "localhost:80",
			expect: &spec{Target: "localhost:80"},
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			got, err := prob.NewSpec(test.kind, test.target)
			if test.expectError != nil {
				require.ErrorIs(t, err, test.expectError)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.expect, got)
		})
	}
}
