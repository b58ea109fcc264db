package prob

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sre-norns/wyrd/pkg/manifest"
)

// ProbeFn checks a target once. A target that is not there (yet) is reported as RunFinishedFailed
// with a nil error, errors are for probes that could not be executed at all.
type ProbeFn func(ctx context.Context, spec any, registry *prometheus.Registry, logger log.Logger) (RunStatus, error)

// SpecFn builds the spec of a probe for the given target
type SpecFn func(target string) (any, error)

type ProbRegistration struct {
	// Function to execute a probe
	RunFunc ProbeFn

	// Function to build a spec for a target address
	NewSpec SpecFn

	// Sem-version of the prober module loaded
	Version string

	// Short human readable description
	Description string
}

// Registrar of Probing modules
var (
	registryLock  sync.RWMutex
	kindRunnerMap = map[Kind]ProbRegistration{}
)

// Register new kind of prob
func RegisterProbKind(kind Kind, probInfo ProbRegistration) error {
	if probInfo.RunFunc == nil {
		return ErrNilRunner
	}

	registryLock.Lock()
	defer registryLock.Unlock()

	kindRunnerMap[kind] = probInfo
	return nil
}

// Unregister given prober kind
func UnregisterProbKind(kind Kind) error {
	registryLock.Lock()
	defer registryLock.Unlock()

	delete(kindRunnerMap, kind)
	return nil
}

// List all registered probers
// Note: function makes a copy of the module list to avoid accidental modification of registration info
func ListProbs() map[Kind]ProbRegistration {
	registryLock.RLock()
	defer registryLock.RUnlock()

	result := make(map[Kind]ProbRegistration, len(kindRunnerMap))
	for kind, info := range kindRunnerMap {
		result[kind] = info
	}

	return result
}

// ListKinds returns names of all registered probers in order
func ListKinds() []Kind {
	probs := ListProbs()
	result := make([]Kind, 0, len(probs))
	for kind := range probs {
		result = append(result, kind)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result
}

func FindRunFunc(kind Kind) (ProbeFn, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	result, ok := kindRunnerMap[kind]
	return result.RunFunc, ok
}

// NewSpec creates a spec for a registered kind of probe pointed at the target
func NewSpec(kind Kind, target string) (any, error) {
	registryLock.RLock()
	info, ok := kindRunnerMap[kind]
	registryLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", manifest.ErrUnknownKind, kind)
	}

	if target == "" {
		return nil, ErrNoTarget
	}

	if info.NewSpec == nil {
		return target, nil
	}

	return info.NewSpec(target)
}
