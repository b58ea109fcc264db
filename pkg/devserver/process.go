package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Grandchildren holding on to the output pipes must not block Wait forever
const outputDrainDelay = 2 * time.Second

// CommandStarter spawns the project's development server as a child process
type CommandStarter struct {
	// Program and its arguments, e.g. npm run dev
	Command []string

	// Working directory of the server, current directory if empty
	Dir string

	// Extra environment on top of the current process environment
	Env []string

	// Where the server's stdout and stderr go
	Output io.Writer

	Logger log.Logger
}

// Process is a running child process
type Process struct {
	cmd    *exec.Cmd
	logger log.Logger

	done chan struct{}
	err  error

	stopOnce sync.Once
	stopErr  error
}

func (s CommandStarter) Start(ctx context.Context) (Server, error) {
	if len(s.Command) == 0 || s.Command[0] == "" {
		return nil, ErrNoCommand
	}

	logger := s.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The process lifetime is managed by Stop rather than by ctx: it must be terminated gracefully
	// even when ctx is canceled by an interrupt.
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdout = s.Output
	cmd.Stderr = s.Output
	cmd.WaitDelay = outputDrainDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", s.Command[0], err)
	}

	p := &Process{
		cmd:    cmd,
		logger: log.With(logger, "pid", cmd.Process.Pid),
		done:   make(chan struct{}),
	}
	level.Info(p.logger).Log("msg", "server process started", "cmd", s.Command[0], "dir", s.Dir)

	go func() {
		defer close(p.done)
		p.err = cmd.Wait()
		level.Debug(p.logger).Log("msg", "server process exited", "state", cmd.ProcessState)
	}()

	return p, nil
}

func (p *Process) Addr() string {
	return "pid:" + strconv.Itoa(p.cmd.Process.Pid)
}

func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) Err() error {
	select {
	case <-p.done:
	default:
		return nil
	}

	if p.err != nil {
		return fmt.Errorf("%w: %w", ErrServerExited, p.err)
	}

	return ErrServerExited
}

// Stop sends a termination signal to the process (group) and waits for it to exit.
// The process is killed if it does not exit before ctx is done.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop(ctx)
	})

	return p.stopErr
}

func (p *Process) stop(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	level.Debug(p.logger).Log("msg", "terminating server process")
	if err := terminate(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		level.Warn(p.logger).Log("msg", "failed to signal server process", "err", err)
	}

	select {
	case <-p.done:
		level.Info(p.logger).Log("msg", "server process stopped")
		return nil
	case <-ctx.Done():
	}

	level.Warn(p.logger).Log("msg", "server process did not exit in time, killing it")
	if err := kill(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill server process: %w", err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server process %d did not exit after kill", p.cmd.Process.Pid)
	}
}
