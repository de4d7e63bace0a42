package server

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcpb/schema"
)

func TestSession_PrunesStaleWaiters(t *testing.T) {
	b := &memoryBackend{output: make(chan []byte, 16), done: make(chan struct{}), received: make(chan string, 16)}
	sess := newSession("abc", b, zerolog.Nop())
	sess.retention = 20 * time.Millisecond

	submit := func(data string) {
		message, err := schema.Decode([]byte(data))
		require.NoError(t, err)
		require.NoError(t, sess.submit(context.Background(), message, []byte(data)))
	}
	submit(`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	submit(`{"jsonrpc":"2.0","id":2,"method":"tools/call"}`)
	go sess.pump()
	b.emit(`{"jsonrpc":"2.0","id":2,"result":{}}`)
	select {
	case <-sess.out:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "reply not published")
	}

	time.Sleep(50 * time.Millisecond)
	submit(`{"jsonrpc":"2.0","id":3,"method":"tools/call"}`)
	sess.mux.Lock()
	keys := make([]string, 0, len(sess.waiters))
	for key := range sess.waiters {
		keys = append(keys, key)
	}
	sess.mux.Unlock()
	assert.Equal(t, []string{"n:3"}, keys)
	sess.close()
}
