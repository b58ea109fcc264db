package runner

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/sre-norns/wyrd/pkg/manifest"
	"golang.org/x/mod/semver"

	"github.com/sre-norns/viewshot/pkg/devserver"
	"github.com/sre-norns/viewshot/pkg/prob"
	"github.com/sre-norns/viewshot/pkg/wyrd"
)

const (
	LabelOS   = "runner.os"
	LabelArch = "runner.arch"

	// Runtimes available:
	LabelNodeJsVersion      = "runner.node.version"
	LabelNodeJsVersionMajor = LabelNodeJsVersion + ".major"

	LabelNpmVersion      = "runner.npm.version"
	LabelNpmVersionMajor = LabelNpmVersion + ".major"

	// Well-known labels used by runners:
	LabelBuildVersion = "runner.version"
)

type ServerOptions struct {
	Command string   `help:"Command starting the development server" default:"npm run dev" name:"server-cmd" env:"VIEWSHOT_SERVER_CMD"`
	Dir     string   `help:"Working directory of the development server" default:"." type:"existingdir" name:"server-dir" env:"VIEWSHOT_SERVER_DIR"`
	Env     []string `help:"Extra environment variables for the server, KEY=VALUE" name:"server-env"`

	StaticDir  string `help:"Serve this pre-built site directory instead of running the server command" type:"existingdir" name:"static-dir" env:"VIEWSHOT_STATIC_DIR" xor:"server"`
	StaticAddr string `help:"Address the static site is served on" default:"127.0.0.1:0" name:"static-addr"`
	NoServer   bool   `help:"Do not start anything, the URL is already being served" env:"VIEWSHOT_NO_SERVER" xor:"server"`

	StopTimeout time.Duration `help:"How long the server gets to exit before it is killed" default:"5s"`
}

// Starter for the configured kind of server. Output of a server process goes to output.
func (o ServerOptions) Starter(output io.Writer, logger log.Logger) devserver.Starter {
	switch {
	case o.NoServer:
		return devserver.External{}
	case o.StaticDir != "":
		return devserver.StaticStarter{
			Dir:     o.StaticDir,
			Address: o.StaticAddr,
			Logger:  logger,
		}
	}

	return devserver.CommandStarter{
		Command: strings.Fields(o.Command),
		Dir:     o.Dir,
		Env:     o.Env,
		Output:  output,
		Logger:  logger,
	}
}

type ReadyOptions struct {
	Probe          string        `help:"How to tell the server is ready: ${enum}" enum:"http,tcp" default:"http" name:"ready-probe" env:"VIEWSHOT_READY_PROBE"`
	Timeout        time.Duration `help:"Give up when the server is not ready after this long" default:"30s" name:"ready-timeout" env:"VIEWSHOT_READY_TIMEOUT"`
	MinInterval    time.Duration `help:"First delay between readiness probes" default:"100ms" name:"ready-min-interval"`
	MaxInterval    time.Duration `help:"Longest delay between readiness probes" default:"2s" name:"ready-max-interval"`
	AttemptTimeout time.Duration `help:"Maximum duration of a single readiness probe" default:"5s" name:"ready-attempt-timeout"`
}

func (o ReadyOptions) Kind() prob.Kind {
	return prob.Kind(o.Probe)
}

func (o ReadyOptions) WaitOptions() prob.WaitOptions {
	result := prob.DefaultWaitOptions()
	result.MaxWait = o.Timeout
	result.Jitter = true

	if o.MinInterval > 0 {
		result.MinInterval = o.MinInterval
	}
	if o.MaxInterval > 0 {
		result.MaxInterval = o.MaxInterval
	}
	if o.AttemptTimeout > 0 {
		result.AttemptTimeout = o.AttemptTimeout
	}

	return result
}

func versionLabels(ctx context.Context, program, label, majorLabel string) manifest.Labels {
	out, err := exec.CommandContext(ctx, program, "-v").Output()
	if err != nil {
		return manifest.Labels{}
	}

	vstr := strings.TrimPrefix(strings.TrimSpace(string(out)), "v")
	major := semver.Major("v" + vstr)
	if major == "" {
		return manifest.Labels{label: vstr}
	}

	return manifest.Labels{
		label:      vstr,
		majorLabel: major[1:],
	}
}

func GetNodeRuntimeLabels(ctx context.Context) manifest.Labels {
	return versionLabels(ctx, "node", LabelNodeJsVersion, LabelNodeJsVersionMajor)
}

func GetNpmRuntimeLabels(ctx context.Context) manifest.Labels {
	return versionLabels(ctx, "npm", LabelNpmVersion, LabelNpmVersionMajor)
}

func GetRuntimeLabels() manifest.Labels {
	version := "devel"
	if bi, ok := debug.ReadBuildInfo(); ok {
		version = strings.Trim(bi.Main.Version, "()")
	}

	return manifest.Labels{
		LabelArch:         runtime.GOARCH,
		LabelOS:           runtime.GOOS,
		LabelBuildVersion: version,
	}
}

// RuntimeLabels describe the machine a run happens on. Node and npm versions are only
// interesting when the server is a node project, probing them is skipped otherwise.
func RuntimeLabels(ctx context.Context, withNode bool, custom ...string) (manifest.Labels, error) {
	customLabels, ok := wyrd.ParseLabels(custom)
	if !ok {
		return nil, fmt.Errorf("invalid label in %q, expected key=value", custom)
	}

	if !withNode {
		return wyrd.MergeAll(GetRuntimeLabels(), customLabels), nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return wyrd.MergeAll(
		GetRuntimeLabels(),
		GetNodeRuntimeLabels(probeCtx),
		GetNpmRuntimeLabels(probeCtx),
		customLabels,
	), nil
}
