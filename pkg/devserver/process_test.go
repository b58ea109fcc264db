//go:build unix

package devserver_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sre-norns/viewshot/pkg/devserver"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func TestCommandStarter_NoCommand(t *testing.T) {
	_, err := devserver.CommandStarter{}.Start(context.Background())
	require.ErrorIs(t, err, devserver.ErrNoCommand)
}

func TestCommandStarter_MissingBinary(t *testing.T) {
	_, err := devserver.CommandStarter{Command: []string{"viewshot-no-such-binary"}}.Start(context.Background())
	require.Error(t, err)
}

func TestCommandStarter_CapturesOutput(t *testing.T) {
	var out syncBuffer
	srv, err := devserver.CommandStarter{
		Command: []string{"sh", "-c", "echo ready on $VIEWSHOT_TEST_PORT"},
		Env:     []string{"VIEWSHOT_TEST_PORT=5173"},
		Output:  &out,
	}.Start(context.Background())
	require.NoError(t, err)

	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	require.ErrorIs(t, srv.Err(), devserver.ErrServerExited)
	require.Equal(t, "ready on 5173\n", out.String())
	require.NoError(t, srv.Stop(context.Background()))
}

func TestCommandStarter_Stop(t *testing.T) {
	srv, err := devserver.CommandStarter{
		Command: []string{"sh", "-c", "sleep 30 & wait"},
	}.Start(context.Background())
	require.NoError(t, err)
	require.Contains(t, srv.Addr(), "pid:")

	require.Nil(t, srv.Err(), "a running server has no exit error")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, srv.Stop(ctx))
	require.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-srv.Done():
	default:
		t.Fatal("server must be done after stop")
	}

	// Second stop is a no-op
	require.NoError(t, srv.Stop(ctx))
}

func TestCommandStarter_KillsAfterGracePeriod(t *testing.T) {
	srv, err := devserver.CommandStarter{
		Command: []string{"sh", "-c", "trap '' TERM; while true; do sleep 0.1; done"},
	}.Start(context.Background())
	require.NoError(t, err)

	// Let the shell install the trap
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, srv.Stop(ctx))
	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process survived kill")
	}
}

func TestExternal(t *testing.T) {
	srv, err := devserver.External{}.Start(context.Background())
	require.NoError(t, err)
	require.Nil(t, srv.Done())
	require.NoError(t, srv.Err())
	require.NoError(t, srv.Stop(context.Background()))
}
