package tcp

import (
	"context"
	"fmt"
	"net"
	"net/url"
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
	Kind = prob.Kind("tcp")
)

type Spec struct {
	// Address to connect to, in host:port form
	Target string             `json:"target,omitempty" yaml:"target,omitempty"`
	TCP    bxconfig.TCPProbe `json:"tcp" yaml:"tcp"`
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
			Description: "target accepts TCP connections",
		},
	)
}

// NewSpec accepts either host:port or a URL, in which case the port is derived from the scheme when not given
func NewSpec(target string) (any, error) {
	address, err := TargetFromURL(target)
	if err != nil {
		return nil, err
	}

	return &Spec{
		Target: address,
		TCP:    bxconfig.DefaultTCPProbe,
	}, nil
}

func TargetFromURL(target string) (string, error) {
	if !strings.Contains(target, "://") {
		if _, _, err := net.SplitHostPort(target); err != nil {
			return "", fmt.Errorf("invalid tcp target %q: %w", target, err)
		}

		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid tcp target %q: %w", target, err)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: no host in %q", prob.ErrNoTarget, target)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https", "wss":
			port = "443"
		default:
			port = "80"
		}
	}

	return net.JoinHostPort(u.Hostname(), port), nil
}

func RunScript(ctx context.Context, probSpec any, registry *prometheus.Registry, logger log.Logger) (prob.RunStatus, error) {
	spec, ok := probSpec.(*Spec)
	if !ok {
		return prob.RunFinishedError, fmt.Errorf("%w: got %q, expected %q", manifest.ErrUnexpectedSpecType, reflect.TypeOf(probSpec), reflect.TypeOf(&Spec{}))
	}

	if spec.Target == "" {
		return prob.RunFinishedError, prob.ErrNoTarget
	}

	if success := prober.ProbeTCP(ctx, spec.Target, bxconfig.Module{TCP: spec.TCP}, registry, logger); !success {
		return prob.RunFinishedFailed, nil
	}

	return prob.RunFinishedSuccess, nil
}
