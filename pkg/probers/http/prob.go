package http

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/go-kit/log"
	bxconfig "github.com/prometheus/blackbox_exporter/config"
	"github.com/prometheus/blackbox_exporter/prober"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sre-norns/wyrd/pkg/manifest"

	"github.com/sre-norns/viewshot/pkg/prob"
)

const (
	Kind = prob.Kind("http")
)

type Spec struct {
	Target string             `json:"target,omitempty" yaml:"target,omitempty"`
	HTTP   bxconfig.HTTPProbe `json:"http" yaml:"http"`
}

func init() {
	moduleVersion := "devel"
	if bi, ok := debug.ReadBuildInfo(); ok {
		moduleVersion = strings.Trim(bi.Main.Version, "()")
	}

	// Ignore double registration error
	_ = prob.RegisterProbKind(
		Kind,
		prob.ProbRegistration{
			RunFunc:     RunScript,
			NewSpec:     NewSpec,
			Version:     moduleVersion,
			Description: "target answers GET with a 2xx status",
		},
	)
}

func NewSpec(target string) (any, error) {
	return &Spec{
		Target: target,
		HTTP:   bxconfig.DefaultHTTPProbe,
	}, nil
}

func RunScript(ctx context.Context, probSpec any, registry *prometheus.Registry, logger log.Logger) (prob.RunStatus, error) {
	spec, ok := probSpec.(*Spec)
	if !ok {
		return prob.RunFinishedError, fmt.Errorf("%w: got %q, expected %q", manifest.ErrUnexpectedSpecType, reflect.TypeOf(probSpec), reflect.TypeOf(&Spec{}))
	}

	if spec.Target == "" {
		return prob.RunFinishedError, prob.ErrNoTarget
	}

	if success := prober.ProbeHTTP(ctx, spec.Target, bxconfig.Module{HTTP: spec.HTTP}, registry, logger); !success {
		return prob.RunFinishedFailed, nil
	}

	return prob.RunFinishedSuccess, nil
}
