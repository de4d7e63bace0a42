package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcpb/client/mock"
	"github.com/viant/mcpb/schema"
)

type harness struct {
	stdin  *io.PipeWriter
	lines  chan *schema.Message
	done   chan error
	server *mock.Server
	cancel context.CancelFunc
}

func startBridge(t *testing.T, server *mock.Server, options *Options) *harness {
	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	if options == nil {
		options = &Options{}
	}
	options.URL = server.URL()
	if options.BackoffMin == 0 {
		options.BackoffMin = 10 * time.Millisecond
		options.BackoffMax = 50 * time.Millisecond
	}
	if options.SweepInterval == 0 {
		options.SweepInterval = 10 * time.Millisecond
	}
	options.LogLevel = "error"
	ctx, cancel := context.WithCancel(context.Background())
	service, err := New(ctx, options, inReader, outWriter)
	require.NoError(t, err)

	ret := &harness{stdin: inWriter, lines: make(chan *schema.Message, 64), done: make(chan error, 1), server: server, cancel: cancel}
	go func() {
		scanner := bufio.NewScanner(outReader)
		for scanner.Scan() {
			message, err := schema.Decode(scanner.Bytes())
			if assert.NoError(t, err, scanner.Text()) {
				ret.lines <- message
			}
		}
	}()
	go func() {
		ret.done <- service.Run(ctx)
		_ = outWriter.Close()
	}()
	t.Cleanup(func() {
		cancel()
		_ = inWriter.Close()
	})
	return ret
}

func (h *harness) write(t *testing.T, line string) {
	_, err := h.stdin.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (h *harness) read(t *testing.T) *schema.Message {
	select {
	case message := <-h.lines:
		return message
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no line received")
	}
	return nil
}

func (h *harness) quiet(t *testing.T, wait time.Duration) {
	select {
	case message := <-h.lines:
		data, _ := message.Encode()
		assert.Fail(t, "unexpected line", string(data))
	case <-time.After(wait):
	}
}

func code(t *testing.T, message *schema.Message) int {
	rpcError := struct {
		Code int `json:"code"`
	}{}
	require.NoError(t, json.Unmarshal(message.Error, &rpcError))
	return rpcError.Code
}

func TestService_RoundTrip(t *testing.T) {
	server := mock.New()
	defer server.Close()
	h := startBridge(t, server, nil)

	h.write(t, `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	reply := h.read(t)
	assert.Equal(t, "0", string(reply.Id))
	assert.JSONEq(t, `{"method":"initialize"}`, string(reply.Result))

	h.write(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	h.write(t, `{"jsonrpc":"2.0","id":"x","method":"tools/list"}`)
	reply = h.read(t)
	assert.Equal(t, `"x"`, string(reply.Id))
	h.quiet(t, 100*time.Millisecond)

	received, err := server.WaitReceived(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"initialize", "notifications/initialized", "tools/list"},
		[]string{received[0].Method, received[1].Method, received[2].Method})
}

func TestService_DuplicateReplyWrittenOnce(t *testing.T) {
	server := mock.New(func(s *mock.Server) {
		s.Handler = func(server *mock.Server, session *mock.Session, message *schema.Message) {
			if message.IsRequest() {
				server.Reply(session, message, map[string]int{"sum": 3})
				server.Reply(session, message, map[string]int{"sum": 3})
			}
		}
	})
	defer server.Close()
	h := startBridge(t, server, nil)

	h.write(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add"}}`)
	reply := h.read(t)
	assert.Equal(t, "1", string(reply.Id))
	h.quiet(t, 150*time.Millisecond)
}

func TestService_NotificationGetsNoReply(t *testing.T) {
	server := mock.New(func(s *mock.Server) {
		s.Handler = func(server *mock.Server, session *mock.Session, message *schema.Message) {
			server.Push(session, `{"jsonrpc":"2.0","result":{}}`)
			server.Push(session, `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`)
		}
	})
	defer server.Close()
	h := startBridge(t, server, &Options{RequestTimeout: 50 * time.Millisecond})

	h.write(t, `{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1}}`)
	_, err := server.WaitReceived(context.Background(), 1)
	require.NoError(t, err)
	h.quiet(t, 200*time.Millisecond)
}

func TestService_SessionLossFailsPending(t *testing.T) {
	server := mock.New(func(s *mock.Server) { s.Handler = nil })
	defer server.Close()
	requestTimeout := 10 * time.Second
	h := startBridge(t, server, &Options{RequestTimeout: requestTimeout})
	remote, err := server.WaitSession(context.Background())
	require.NoError(t, err)

	started := time.Now()
	h.write(t, `{"jsonrpc":"2.0","id":11,"method":"tools/call"}`)
	_, err = server.WaitReceived(context.Background(), 1)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	server.Drop(remote)

	reply := h.read(t)
	assert.Equal(t, "11", string(reply.Id))
	assert.Equal(t, schema.SessionInvalidated, code(t, reply))
	assert.Less(t, time.Since(started), requestTimeout)

	_, err = server.WaitSession(context.Background())
	require.NoError(t, err)
	server.SetHandler(mock.Echo)
	h.write(t, `{"jsonrpc":"2.0","id":12,"method":"tools/list"}`)
	reply = h.read(t)
	assert.Equal(t, "12", string(reply.Id))
	assert.Empty(t, reply.Error)
}

func TestService_TimeoutAndDrain(t *testing.T) {
	server := mock.New(func(s *mock.Server) { s.Handler = nil })
	defer server.Close()
	h := startBridge(t, server, &Options{RequestTimeout: 300 * time.Millisecond, DrainTimeout: 50 * time.Millisecond})

	h.write(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	reply := h.read(t)
	assert.Equal(t, schema.RequestTimeout, code(t, reply))

	h.write(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call"}`)
	_, err := server.WaitReceived(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, h.stdin.Close())
	reply = h.read(t)
	assert.Equal(t, "2", string(reply.Id))
	assert.Equal(t, schema.BridgeClosed, code(t, reply))

	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		assert.Fail(t, "bridge did not stop")
	}
}
