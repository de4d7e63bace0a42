package backend

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCommand(t *testing.T, name string) {
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%v not available", name)
	}
}

func TestProcess_EchoesLines(t *testing.T) {
	requireCommand(t, "cat")
	factory := Command("cat", nil, WithGrace(200*time.Millisecond))
	b, err := factory(context.Background(), "abc")
	require.NoError(t, err)
	defer b.Close()

	testCases := []struct {
		description string
		line        string
	}{
		{description: "request", line: `{"jsonrpc":"2.0","id":1,"method":"ping"}`},
		{description: "notification", line: `{"jsonrpc":"2.0","method":"notifications/initialized"}`},
	}
	for _, testCase := range testCases {
		require.NoError(t, b.Send(context.Background(), []byte(testCase.line)), testCase.description)
		select {
		case line := <-b.Output():
			assert.Equal(t, testCase.line, string(line), testCase.description)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no output", testCase.description)
		}
	}
}

func TestProcess_CloseStopsProcess(t *testing.T) {
	requireCommand(t, "cat")
	b, err := Start("cat", nil, WithGrace(200*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, b.Close())
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "process still running")
	}
	assert.ErrorIs(t, b.Send(context.Background(), []byte(`{}`)), ErrClosed)
	_, ok := <-b.Output()
	assert.False(t, ok)
}

func TestProcess_KilledWhenIgnoringStdin(t *testing.T) {
	requireCommand(t, "sh")
	b, err := Start("sh", []string{"-c", "trap '' TERM; sleep 30"}, WithGrace(100*time.Millisecond))
	require.NoError(t, err)
	started := time.Now()
	require.NoError(t, b.Close())
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "process still running")
	}
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestProcess_CloseWithBlockedInput(t *testing.T) {
	requireCommand(t, "sleep")
	b, err := Start("sleep", []string{"30"}, WithGrace(100*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sent := make(chan error, 1)
	go func() {
		sent <- b.Send(ctx, make([]byte, 1024*1024))
	}()
	select {
	case err := <-sent:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "send ignored its context")
	}

	closed := make(chan struct{})
	go func() {
		_ = b.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		require.FailNow(t, "close blocked behind a pending write")
	}
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		require.FailNow(t, "process still running")
	}
	assert.ErrorIs(t, b.Send(context.Background(), []byte(`{}`)), ErrClosed)
}

func TestStart_UnknownCommand(t *testing.T) {
	_, err := Start("mcpb-no-such-command", nil)
	assert.Error(t, err)
}
