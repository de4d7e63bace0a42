package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/viant/mcpb/internal/credential"
	"github.com/viant/mcpb/internal/metrics"
	"github.com/viant/mcpb/internal/sse"
)

// Fallback defines what happens when the push stream never names a session
type Fallback string

const (
	FallbackFail     Fallback = "fail"
	FallbackGenerate Fallback = "generate"
)

var (
	ErrClosed             = errors.New("client closed")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionTimeout     = errors.New("no session id received")
	ErrUnauthorized       = errors.New("credential rejected")
	ErrStreamClosed       = errors.New("push stream closed")
)

const maxAckSize = 64 * 1024

// Client maintains a push stream session with a remote server and submits messages bound to it.
type Client struct {
	streamURL   *url.URL
	httpClient  *http.Client
	token       string
	sessionKey  string
	sessionWait time.Duration
	fallback    Fallback
	messagePath string
	backoffMin  time.Duration
	backoffMax  time.Duration
	sendRetries int
	listener    Listener
	logger      zerolog.Logger

	mux        sync.Mutex
	session    *Session
	ready      chan struct{}
	failed     chan struct{}
	failure    error
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	doneOnce   sync.Once
	err        error
}

// Session returns the current ready session or nil
func (c *Client) Session() *Session {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.session
}

// Run maintains the push stream until ctx ends or Close is called. It returns an error only when
// the remote rejects the credential.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mux.Lock()
	if c.isDone() {
		c.mux.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mux.Unlock()

	policy := c.newBackoff()
	for {
		wasReady, err := c.connect(ctx)
		if ctx.Err() != nil {
			c.shutdown(ErrClosed)
			return nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			c.logger.Error().Err(permanent.Err).Msg("remote session failed permanently")
			c.shutdown(permanent.Err)
			return permanent.Err
		}
		if wasReady {
			policy.Reset()
		}
		delay := policy.NextBackOff()
		c.logger.Warn().Err(err).Dur("delay", delay).Msg("reconnecting push stream")
		metrics.RecordReconnect()
		select {
		case <-ctx.Done():
			c.shutdown(ErrClosed)
			return nil
		case <-time.After(delay):
		}
	}
}

// Close stops the client, failing any waiting sends
func (c *Client) Close() error {
	c.mux.Lock()
	cancel := c.cancel
	c.mux.Unlock()
	if cancel != nil {
		cancel()
	}
	c.shutdown(ErrClosed)
	return nil
}

// Done is closed once the client stopped
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send posts data on the current session, waiting for one to become ready. The returned session is
// the one the message was posted on.
func (c *Client) Send(ctx context.Context, data []byte) (*Session, error) {
	session, err := c.awaitSession(ctx)
	if err != nil {
		return nil, err
	}
	return session, c.SendTo(ctx, session, data)
}

// SendTo posts data on the supplied session, retrying transient failures while it stays ready.
func (c *Client) SendTo(ctx context.Context, session *Session, data []byte) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackoff(), uint64(c.sendRetries)), ctx)
	err := backoff.Retry(func() error {
		if session.State() != Ready {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrSessionInvalidated, session.ID))
		}
		return c.post(ctx, session, data)
	}, policy)
	if err != nil {
		metrics.RecordSend("failed")
		return err
	}
	metrics.RecordSend("accepted")
	return nil
}

func (c *Client) post(ctx context.Context, session *Session, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, session.MessageURL.String(), bytes.NewReader(data))
	if err != nil {
		return backoff.Permanent(err)
	}
	request.Header.Set("Content-Type", "application/json")
	response, err := c.httpClient.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Debug().Err(err).Str("session", session.ID).Msg("submission failed")
		return err
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxAckSize))
	switch code := response.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		err = fmt.Errorf("%w: %v: %w", ErrSessionInvalidated, session.ID, ErrSessionNotFound)
		c.invalidate(session, err)
		return backoff.Permanent(err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnauthorized, response.Status))
	case code >= 400 && code < 500:
		return backoff.Permanent(fmt.Errorf("submission rejected: %v", response.Status))
	default:
		return fmt.Errorf("submission failed: %v", response.Status)
	}
}

func (c *Client) awaitSession(ctx context.Context) (*Session, error) {
	for {
		c.mux.Lock()
		session, ready, failed, err := c.session, c.ready, c.failed, c.err
		c.mux.Unlock()
		if err != nil {
			return nil, err
		}
		if session != nil && session.State() == Ready {
			return session, nil
		}
		select {
		case <-ready:
		case <-failed:
			c.mux.Lock()
			err = c.failure
			c.mux.Unlock()
			return nil, err
		case <-c.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// connect runs one push stream session; it reports whether the session became ready.
func (c *Client) connect(ctx context.Context) (bool, error) {
	session := c.newSession()
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	request, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.streamURL.String(), nil)
	if err != nil {
		return false, backoff.Permanent(err)
	}
	request.Header.Set("Accept", "text/event-stream")
	request.Header.Set("Cache-Control", "no-cache")
	response, err := c.httpClient.Do(request)
	if err != nil {
		c.invalidate(session, err)
		return false, err
	}
	defer response.Body.Close()
	switch code := response.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		err = fmt.Errorf("%w: %v", ErrUnauthorized, response.Status)
		c.invalidate(session, err)
		return false, backoff.Permanent(err)
	case code < 200 || code >= 300:
		err = fmt.Errorf("push stream rejected: %v", response.Status)
		c.invalidate(session, err)
		return false, err
	}
	session.setState(AwaitingSessionID)
	c.logger.Debug().Uint64("generation", session.Generation).Msg("push stream connected")

	events := make(chan *sse.Event)
	readErr := make(chan error, 1)
	go func() {
		decoder := sse.NewDecoder(response.Body)
		for {
			event, err := decoder.Decode()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- event:
			case <-streamCtx.Done():
				readErr <- streamCtx.Err()
				return
			}
		}
	}()

	wait := time.NewTimer(c.sessionWait)
	defer wait.Stop()
	for {
		select {
		case <-ctx.Done():
			c.invalidate(session, ErrClosed)
			return session.ID != "", ctx.Err()
		case <-session.Done():
			return true, session.Err()
		case err := <-readErr:
			if err == io.EOF {
				err = ErrStreamClosed
			}
			err = fmt.Errorf("%w: %w", ErrSessionInvalidated, err)
			c.invalidate(session, err)
			return session.ID != "", err
		case <-wait.C:
			if session.State() != AwaitingSessionID {
				continue
			}
			if c.fallback != FallbackGenerate {
				err := fmt.Errorf("%w within %v", ErrSessionTimeout, c.sessionWait)
				c.fail(err)
				c.invalidate(session, err)
				return false, err
			}
			session.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
			session.SelfAssigned = true
			session.MessageURL = WithSession(c.streamURL.ResolveReference(&url.URL{Path: c.messagePath}), c.sessionKey, session.ID)
			c.logger.Warn().Dur("wait", c.sessionWait).Str("session", session.ID).Msg("no session id received, using generated id")
			c.activate(session)
		case event := <-events:
			c.handleEvent(session, event)
		}
	}
}

func (c *Client) handleEvent(session *Session, event *sse.Event) {
	if session.State() == AwaitingSessionID {
		if id, ok := ExtractSessionID(event.Data, c.sessionKey); ok {
			messageURL, err := MessageURL(c.streamURL, event.Data)
			if err != nil {
				c.logger.Warn().Err(err).Str("data", event.Data).Msg("invalid endpoint, using message path")
				messageURL = c.streamURL.ResolveReference(&url.URL{Path: c.messagePath})
			}
			session.ID = id
			session.MessageURL = WithSession(messageURL, c.sessionKey, id)
			c.activate(session)
			return
		}
		if event.Name() == "endpoint" {
			c.logger.Warn().Str("key", c.sessionKey).Str("data", event.Data).Msg("endpoint event without session id")
			return
		}
	}
	if event.Name() == "endpoint" {
		c.logger.Debug().Str("data", event.Data).Msg("ignoring endpoint event on established session")
		return
	}
	if strings.TrimSpace(event.Data) == "" {
		return
	}
	c.listener.OnMessage(session, []byte(event.Data))
}

// activate marks the session ready and publishes it to senders once the listener is done with it.
func (c *Client) activate(session *Session) {
	session.setState(Ready)
	metrics.RecordSession(session.SelfAssigned)
	c.logger.Info().Str("session", session.ID).Uint64("generation", session.Generation).Str("url", session.MessageURL.String()).Msg("session ready")
	go func() {
		c.listener.OnSessionReady(session)
		c.mux.Lock()
		defer c.mux.Unlock()
		if session.State() != Ready {
			return
		}
		c.session = session
		close(c.ready)
	}()
}

func (c *Client) invalidate(session *Session, err error) {
	c.mux.Lock()
	if c.session == session {
		c.session = nil
		c.ready = make(chan struct{})
	}
	c.mux.Unlock()
	if !session.close(err) {
		return
	}
	if session.ID != "" {
		c.logger.Warn().Err(err).Str("session", session.ID).Uint64("generation", session.Generation).Msg("session closed")
	}
	c.listener.OnSessionClosed(session, err)
}

// fail wakes senders waiting for a session with err
func (c *Client) fail(err error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.failure = err
	close(c.failed)
	c.failed = make(chan struct{})
}

func (c *Client) newSession() *Session {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.generation++
	return NewSession(c.generation)
}

func (c *Client) shutdown(err error) {
	c.mux.Lock()
	session := c.session
	c.mux.Unlock()
	if session != nil {
		c.invalidate(session, ErrClosed)
	}
	c.doneOnce.Do(func() {
		c.mux.Lock()
		c.err = err
		c.mux.Unlock()
		close(c.done)
	})
}

func (c *Client) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.backoffMin),
		backoff.WithMaxInterval(c.backoffMax),
		backoff.WithMaxElapsedTime(0),
	)
}

// New creates a client for the push stream at URL
func New(URL string, options ...Option) (*Client, error) {
	streamURL, err := url.Parse(URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %v: %w", URL, err)
	}
	if streamURL.Scheme != "http" && streamURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %v: unsupported scheme", URL)
	}
	ret := &Client{
		streamURL:   streamURL,
		httpClient:  &http.Client{},
		sessionKey:  SessionKey,
		sessionWait: 30 * time.Second,
		fallback:    FallbackFail,
		messagePath: "/messages/",
		backoffMin:  500 * time.Millisecond,
		backoffMax:  30 * time.Second,
		sendRetries: 3,
		listener:    nopListener{},
		logger:      zerolog.Nop(),
		ready:       make(chan struct{}),
		failed:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	base := *ret.httpClient
	base.Transport = credential.Transport(ret.httpClient.Transport, ret.token)
	ret.httpClient = &base
	if expiry, ok := credential.Expiry(ret.token); ok && time.Now().After(expiry) {
		ret.logger.Warn().Time("expiry", expiry).Msg("bearer token has expired")
	}
	return ret, nil
}
