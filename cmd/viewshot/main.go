package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"

	"github.com/sre-norns/viewshot/pkg/grace"

	_ "github.com/sre-norns/viewshot/pkg/probers/http"
	_ "github.com/sre-norns/viewshot/pkg/probers/tcp"
)

type commandContext struct {
	OutputFormatter formatter
	Context         context.Context
	Logger          log.Logger

	// Reports and progress lines
	Out io.Writer
}

type outputFormat string

func (f outputFormat) AfterApply(cfg *commandContext) (err error) {
	cfg.OutputFormatter, err = getFormatter(f)
	return err
}

var appCli struct {
	LogLevel  string        `help:"Log level: ${enum}" enum:"debug,info,warn,error" default:"info" env:"VIEWSHOT_LOG_LEVEL"`
	LogFormat string        `help:"Log format: ${enum}" enum:"logfmt,json" default:"logfmt" env:"VIEWSHOT_LOG_FORMAT"`
	Format    outputFormat  `enum:"table,yaml,yml,json" help:"Report output format" default:"table" short:"o"`
	Timeout   time.Duration `help:"Maximum duration of the whole run" default:"2m" env:"VIEWSHOT_TIMEOUT"`

	Capture   CaptureCmd   `cmd:"" default:"withargs" help:"Start the server and capture a screenshot at every viewport"`
	Check     CheckCmd     `cmd:"" help:"Start the server and check the responsive layout"`
	Probe     ProbeCmd     `cmd:"" help:"Wait until a URL is ready to be captured"`
	Viewports ViewportsCmd `cmd:"" help:"List viewports and the files their screenshots go to"`
}

func newLogger(w io.Writer, format, lvl string) log.Logger {
	var logger log.Logger
	switch format {
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}

	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(lvl, level.InfoValue())))
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

// loadDotEnv reads .env from the working directory, if there is one
func loadDotEnv() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
	}

	mainContext := grace.SetupSignalHandler()
	cfg := &commandContext{
		Context:         mainContext,
		OutputFormatter: tableFormatter,
		Out:             os.Stdout,
	}
	appCtx := kong.Parse(&appCli,
		kong.Name("viewshot"),
		kong.Description("Capture screenshots of a local web app at desktop and mobile viewports"),
		kong.UsageOnError(),
		kong.Bind(cfg),
	)

	cfg.Logger = newLogger(os.Stderr, appCli.LogFormat, appCli.LogLevel)

	ctx, cancel := context.WithTimeout(mainContext, appCli.Timeout)
	cfg.Context = ctx

	err := appCtx.Run(cfg)
	cancel()

	grace.ExitOrLog(err)
}
