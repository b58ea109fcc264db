package runner

import (
	"time"

	"github.com/sre-norns/wyrd/pkg/manifest"

	"github.com/sre-norns/viewshot/pkg/layout"
	"github.com/sre-norns/viewshot/pkg/prob"
)

// Shot is a screenshot written for one viewport
type Shot struct {
	Viewport string        `json:"viewport" yaml:"viewport"`
	Width    int64         `json:"width" yaml:"width"`
	Height   int64         `json:"height" yaml:"height"`
	File     string        `json:"file" yaml:"file"`
	Bytes    int           `json:"bytes" yaml:"bytes"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report is the outcome of a capture or check run
type Report struct {
	Kind      string          `json:"kind" yaml:"kind"`
	Status    prob.RunStatus  `json:"status" yaml:"status"`
	URL       string          `json:"url" yaml:"url"`
	Server    string          `json:"server,omitempty" yaml:"server,omitempty"`
	StartedAt time.Time       `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
	Labels    manifest.Labels     `json:"labels,omitempty" yaml:"labels,omitempty"`
	Ready     prob.WaitResult `json:"ready" yaml:"ready"`

	Shots  []Shot          `json:"shots,omitempty" yaml:"shots,omitempty"`
	Checks []layout.Result `json:"checks,omitempty" yaml:"checks,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r Report) Passed() bool {
	return r.Status == prob.RunFinishedSuccess
}
