package runner

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const DefaultTailLines = 40

// RunLog collects the output of the server under test. Complete lines are forwarded to the logger,
// the last few are kept to explain why a server failed to come up.
type RunLog struct {
	logger log.Logger
	limit  int

	lock    sync.Mutex
	partial bytes.Buffer
	tail    []string
}

func NewRunLog(logger log.Logger, tailLines int) *RunLog {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}

	return &RunLog{
		logger: log.With(logger, "source", "server"),
		limit:  tailLines,
	}
}

func (l *RunLog) Write(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.partial.Write(p)
	for {
		line, err := l.partial.ReadString('\n')
		if err != nil {
			// Incomplete line, keep it for the next write
			l.partial.Reset()
			l.partial.WriteString(line)
			break
		}

		l.appendLine(line)
	}

	return len(p), nil
}

func (l *RunLog) appendLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}

	level.Debug(l.logger).Log("msg", line)

	l.tail = append(l.tail, line)
	if len(l.tail) > l.limit {
		l.tail = l.tail[len(l.tail)-l.limit:]
	}
}

func (l *RunLog) Log(v ...any) {
	l.Write([]byte(fmt.Sprint(v...) + "\n"))
}

func (l *RunLog) Logf(format string, v ...any) {
	l.Log(fmt.Sprintf(format, v...))
}

// Flush takes in a trailing line without a newline
func (l *RunLog) Flush() {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.partial.Len() > 0 {
		l.appendLine(l.partial.String())
		l.partial.Reset()
	}
}

// Tail returns the last lines written
func (l *RunLog) Tail() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	return append([]string(nil), l.tail...)
}

func (l *RunLog) String() string {
	return strings.Join(l.Tail(), "\n")
}
