package runner_test

import (
	"fmt"
	"testing"

	"github.com/go-kit/log"
	"github.com/sre-norns/viewshot/pkg/runner"
	"github.com/stretchr/testify/require"
)

func TestRunLog_Lines(t *testing.T) {
	l := runner.NewRunLog(log.NewNopLogger(), 10)

	fmt.Fprint(l, "> app@0.0.0 dev\n> vite\n\n  VITE v5.0.0  ready in 300 ms")
	require.Equal(t, []string{"> app@0.0.0 dev", "> vite"}, l.Tail())

	fmt.Fprint(l, "\r\n  ➜  Local:   http://localhost:5173/\n")
	require.Equal(t, []string{
		"> app@0.0.0 dev",
		"> vite",
		"  VITE v5.0.0  ready in 300 ms",
		"  ➜  Local:   http://localhost:5173/",
	}, l.Tail())
}

func TestRunLog_TailLimit(t *testing.T) {
	l := runner.NewRunLog(nil, 3)
	for i := 0; i < 10; i++ {
		l.Logf("line %d", i)
	}

	require.Equal(t, []string{"line 7", "line 8", "line 9"}, l.Tail())
	require.Equal(t, "line 7\nline 8\nline 9", l.String())
}

func TestRunLog_Flush(t *testing.T) {
	l := runner.NewRunLog(nil, 0)
	fmt.Fprint(l, "error: port 5173 is in use")
	require.Empty(t, l.Tail())

	l.Flush()
	require.Equal(t, []string{"error: port 5173 is in use"}, l.Tail())

	l.Flush()
	require.Len(t, l.Tail(), 1)
}
