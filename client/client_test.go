package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcpb/client"
	"github.com/viant/mcpb/client/mock"
	"github.com/viant/mcpb/schema"
)

type recorder struct {
	mux      sync.Mutex
	ready    chan *client.Session
	closed   chan *client.Session
	messages chan string
	errs     []error
}

func newRecorder() *recorder {
	return &recorder{ready: make(chan *client.Session, 8), closed: make(chan *client.Session, 8), messages: make(chan string, 64)}
}

func (r *recorder) OnSessionReady(session *client.Session) { r.ready <- session }

func (r *recorder) OnMessage(session *client.Session, data []byte) { r.messages <- string(data) }

func (r *recorder) OnSessionClosed(session *client.Session, err error) {
	r.mux.Lock()
	r.errs = append(r.errs, err)
	r.mux.Unlock()
	r.closed <- session
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout waiting for value")
	}
	var zero T
	return zero
}

func startClient(t *testing.T, server *mock.Server, listener client.Listener, options ...client.Option) (*client.Client, chan error) {
	options = append([]client.Option{
		client.WithListener(listener),
		client.WithBackoff(10*time.Millisecond, 50*time.Millisecond),
	}, options...)
	cli, err := client.New(server.URL(), options...)
	require.NoError(t, err)
	runErr := make(chan error, 1)
	go func() { runErr <- cli.Run(context.Background()) }()
	t.Cleanup(func() { _ = cli.Close() })
	return cli, runErr
}

func TestClient_SessionAndRoundTrip(t *testing.T) {
	server := mock.New()
	defer server.Close()
	listener := newRecorder()
	cli, _ := startClient(t, server, listener)

	session := receive(t, listener.ready)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, session.ID, session.MessageURL.Query().Get("session_id"))
	assert.False(t, session.SelfAssigned)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sent, err := cli.Send(ctx, []byte(`{"jsonrpc":"2.0","id":0,"method":"tools/list"}`))
	require.NoError(t, err)
	assert.Equal(t, session.Generation, sent.Generation)
	assert.Equal(t, client.Ready, sent.State())
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":0,"result":{"method":"tools/list"}}`, receive(t, listener.messages))
}

func TestClient_SendWaitsForSession(t *testing.T) {
	server := mock.New()
	defer server.Close()
	listener := newRecorder()
	cli, err := client.New(server.URL(), client.WithListener(listener))
	require.NoError(t, err)
	defer cli.Close()

	result := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := cli.Send(ctx, []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		result <- err
	}()
	time.Sleep(20 * time.Millisecond)
	go func() { _ = cli.Run(context.Background()) }()
	require.NoError(t, receive(t, result))
	received, err := server.WaitReceived(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, schema.MethodNotificationInitialized, received[0].Method)
}

func TestClient_Fallback(t *testing.T) {
	t.Run("generate", func(t *testing.T) {
		server := mock.New(func(s *mock.Server) { s.OmitEndpoint = true })
		defer server.Close()
		listener := newRecorder()
		startClient(t, server, listener, client.WithSessionWait(50*time.Millisecond), client.WithFallback(client.FallbackGenerate))
		session := receive(t, listener.ready)
		assert.True(t, session.SelfAssigned)
		assert.Len(t, session.ID, 32)
		assert.Equal(t, "/messages/", session.MessageURL.Path)
		assert.Equal(t, session.ID, session.MessageURL.Query().Get(client.SessionKey))
	})

	t.Run("fail", func(t *testing.T) {
		server := mock.New(func(s *mock.Server) { s.OmitEndpoint = true })
		defer server.Close()
		listener := newRecorder()
		cli, _ := startClient(t, server, listener, client.WithSessionWait(50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := cli.Send(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
		assert.True(t, errors.Is(err, client.ErrSessionTimeout), err)
		assert.Empty(t, server.Received())
	})
}

func TestClient_ReconnectAfterStreamLoss(t *testing.T) {
	server := mock.New()
	defer server.Close()
	listener := newRecorder()
	startClient(t, server, listener)

	first := receive(t, listener.ready)
	remote, err := server.WaitSession(context.Background())
	require.NoError(t, err)
	server.Drop(remote)

	closed := receive(t, listener.closed)
	assert.Equal(t, first.Generation, closed.Generation)
	assert.Equal(t, client.Closed, closed.State())
	assert.True(t, errors.Is(closed.Err(), client.ErrSessionInvalidated))

	second := receive(t, listener.ready)
	assert.Greater(t, second.Generation, first.Generation)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestClient_SessionNotFound(t *testing.T) {
	server := mock.New()
	defer server.Close()
	listener := newRecorder()
	cli, _ := startClient(t, server, listener)
	first := receive(t, listener.ready)
	remote, err := server.WaitSession(context.Background())
	require.NoError(t, err)
	server.Forget(remote)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = cli.Send(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	assert.True(t, errors.Is(err, client.ErrSessionInvalidated), err)
	assert.True(t, errors.Is(err, client.ErrSessionNotFound), err)
	assert.Equal(t, first.Generation, receive(t, listener.closed).Generation)
	assert.Greater(t, receive(t, listener.ready).Generation, first.Generation)
}

func TestClient_Unauthorized(t *testing.T) {
	server := mock.New(func(s *mock.Server) { s.Token = "secret" })
	defer server.Close()

	cli, runErr := startClient(t, server, newRecorder(), client.WithToken("wrong"))
	err := receive(t, runErr)
	assert.True(t, errors.Is(err, client.ErrUnauthorized), err)
	_, err = cli.Send(context.Background(), []byte(`{}`))
	assert.Error(t, err)

	listener := newRecorder()
	startClient(t, server, listener, client.WithToken("secret"))
	assert.NotEmpty(t, receive(t, listener.ready).ID)
}
