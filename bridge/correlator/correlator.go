// Package correlator matches replies arriving on the push stream with requests submitted by the local client.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcpb/client"
	"github.com/viant/mcpb/internal/metrics"
	"github.com/viant/mcpb/schema"
)

// ErrClosed is returned for submissions after Close
var ErrClosed = errors.New("correlator closed")

// Emitter writes messages to the local client
type Emitter interface {
	Emit(ctx context.Context, message *schema.Message) error
}

// Sender submits encoded messages to the remote server
type Sender interface {
	// Send waits for a ready session and posts data on it
	Send(ctx context.Context, data []byte) (*client.Session, error)
	// SendTo posts data on the supplied session
	SendTo(ctx context.Context, session *client.Session, data []byte) error
}

// Correlator tracks outstanding requests and guarantees every request exactly one reply
type Correlator struct {
	sender        Sender
	emitter       Emitter
	logger        zerolog.Logger
	timeout       time.Duration
	sweepInterval time.Duration
	reinitialize  bool
	now           func() time.Time
	queue         chan *outbound
	inflight      sync.WaitGroup

	mux sync.Mutex
	// guarded by mux
	pending            map[string]*pending
	dedup              *dedup
	invalidatedThrough uint64
	handshake          handshake
	closed             bool
}

// Start launches the ordered send worker and the timeout sweep
func (c *Correlator) Start(ctx context.Context) {
	go c.sendLoop(ctx)
	go c.sweepLoop(ctx)
}

// Submit records a request as pending before queuing its submission, so a reply can never
// arrive ahead of its pending record. Notifications and responses are queued untracked.
func (c *Correlator) Submit(ctx context.Context, message *schema.Message) error {
	data, err := message.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	metrics.RecordSubmitted(kindOf(message))
	out := &outbound{data: data, method: message.Method}

	c.mux.Lock()
	if c.closed {
		c.mux.Unlock()
		if message.IsRequest() {
			return c.reply(ctx, message.Id, schema.NewBridgeClosed())
		}
		return ErrClosed
	}
	c.observe(message)
	if message.Method == schema.MethodNotificationCancel {
		c.logger.Debug().RawJSON("params", message.Params).Msg("forwarding cancellation, request stays pending until answered")
	}
	if message.IsRequest() {
		key := message.IDKey()
		if _, ok := c.pending[key]; ok {
			c.mux.Unlock()
			c.logger.Warn().RawJSON("id", message.Id).Str("method", message.Method).Msg("request id already pending")
			return c.reply(ctx, message.Id, schema.NewDuplicateRequest(string(message.Id)))
		}
		c.dedup.forget(key)
		out.request = &pending{id: message.Id, key: key, method: message.Method, submittedAt: c.now()}
		c.pending[key] = out.request
		metrics.SetPending(len(c.pending))
	}
	c.inflight.Add(1)
	c.mux.Unlock()

	select {
	case c.queue <- out:
		return nil
	case <-ctx.Done():
		c.inflight.Done()
		if out.request != nil && c.take(out.request) {
			_ = c.reply(context.Background(), out.request.id, schema.NewSendFailed(ctx.Err()))
		}
		return ctx.Err()
	}
}

// OnMessage handles a push stream message
func (c *Correlator) OnMessage(session *client.Session, data []byte) {
	message, err := schema.Decode(data)
	if err != nil {
		c.logger.Warn().Err(err).Str("session", session.ID).Msg("dropping undecodable message")
		metrics.RecordDropped("malformed")
		return
	}
	if message.Method != "" {
		c.forward(message, kindOf(message))
		return
	}
	if !message.HasID() {
		c.logger.Warn().Str("session", session.ID).Msg("dropping reply without id")
		metrics.RecordDropped("unmatched")
		return
	}
	key := message.IDKey()
	fingerprint := message.Fingerprint()
	now := c.now()

	c.mux.Lock()
	if c.dedup.seen(key, fingerprint, now) {
		c.mux.Unlock()
		c.logger.Debug().RawJSON("id", message.Id).Msg("dropping duplicate reply")
		metrics.RecordDropped("duplicate")
		return
	}
	request, ok := c.pending[key]
	if !ok {
		c.mux.Unlock()
		c.logger.Warn().RawJSON("id", message.Id).Str("session", session.ID).Msg("unmatched reply")
		metrics.RecordDropped("unmatched")
		return
	}
	delete(c.pending, key)
	c.dedup.add(key, fingerprint, now)
	count := len(c.pending)
	c.mux.Unlock()
	metrics.SetPending(count)

	if request.internal {
		request.resolve(message)
		return
	}
	c.forward(message, "reply")
}

// OnSessionClosed fails every request posted on the closed session
func (c *Correlator) OnSessionClosed(session *client.Session, err error) {
	c.mux.Lock()
	if session.Generation > c.invalidatedThrough {
		c.invalidatedThrough = session.Generation
	}
	var failed []*pending
	for key, request := range c.pending {
		if request.generation != 0 && request.generation == session.Generation {
			delete(c.pending, key)
			failed = append(failed, request)
		}
	}
	count := len(c.pending)
	c.mux.Unlock()
	if len(failed) == 0 {
		return
	}
	metrics.SetPending(count)
	c.logger.Warn().Err(err).Str("session", session.ID).Int("requests", len(failed)).Msg("failing requests of closed session")
	for _, request := range failed {
		if request.internal {
			request.resolve(nil)
			continue
		}
		_ = c.reply(context.Background(), request.id, schema.NewSessionInvalidated(session.ID))
	}
}

// Sweep answers requests older than the request timeout, returning how many expired
func (c *Correlator) Sweep() int {
	now := c.now()
	c.mux.Lock()
	var expired []*pending
	for key, request := range c.pending {
		if now.Sub(request.submittedAt) >= c.timeout {
			delete(c.pending, key)
			expired = append(expired, request)
		}
	}
	count := len(c.pending)
	c.mux.Unlock()
	if len(expired) == 0 {
		return 0
	}
	metrics.SetPending(count)
	for _, request := range expired {
		c.logger.Warn().RawJSON("id", request.id).Str("method", request.method).Dur("timeout", c.timeout).Msg("request timed out")
		if request.internal {
			request.resolve(nil)
			continue
		}
		_ = c.reply(context.Background(), request.id, schema.NewRequestTimeout(c.timeout))
	}
	return len(expired)
}

// Pending returns the number of requests awaiting a reply
func (c *Correlator) Pending() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.pending)
}

// Close stops accepting submissions, waits for queued sends and outstanding replies until ctx ends,
// then answers whatever is left with a bridge closed error.
func (c *Correlator) Close(ctx context.Context) {
	c.mux.Lock()
	if c.closed {
		c.mux.Unlock()
		return
	}
	c.closed = true
	c.mux.Unlock()

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for c.Pending() > 0 {
		select {
		case <-ctx.Done():
			c.abort()
			return
		case <-ticker.C:
		}
	}
}

func (c *Correlator) abort() {
	c.mux.Lock()
	remaining := make([]*pending, 0, len(c.pending))
	for key, request := range c.pending {
		delete(c.pending, key)
		remaining = append(remaining, request)
	}
	c.mux.Unlock()
	metrics.SetPending(0)
	if len(remaining) > 0 {
		c.logger.Warn().Int("requests", len(remaining)).Msg("closing with outstanding requests")
	}
	for _, request := range remaining {
		if request.internal {
			request.resolve(nil)
			continue
		}
		_ = c.reply(context.Background(), request.id, schema.NewBridgeClosed())
	}
}

func (c *Correlator) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-c.queue:
			c.dispatch(ctx, out)
			c.inflight.Done()
		}
	}
}

func (c *Correlator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Correlator) dispatch(ctx context.Context, out *outbound) {
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	session, err := c.sender.Send(sendCtx, out.data)
	if err != nil {
		if out.request == nil {
			c.logger.Warn().Err(err).Str("method", out.method).Msg("message not delivered")
			return
		}
		if !c.take(out.request) {
			return
		}
		c.logger.Warn().Err(err).RawJSON("id", out.request.id).Str("method", out.method).Msg("request not delivered")
		_ = c.reply(context.Background(), out.request.id, sendError(session, err))
		return
	}
	c.sent(out, session)
}

// sent binds a delivered request to its session, failing it when that session is already gone
func (c *Correlator) sent(out *outbound, session *client.Session) {
	c.mux.Lock()
	if out.method == schema.MethodNotificationInitialized {
		c.handshake.completedOn = session.Generation
	}
	request := out.request
	if request == nil || c.pending[request.key] != request {
		c.mux.Unlock()
		return
	}
	if session.Generation <= c.invalidatedThrough {
		delete(c.pending, request.key)
		count := len(c.pending)
		c.mux.Unlock()
		metrics.SetPending(count)
		_ = c.reply(context.Background(), request.id, schema.NewSessionInvalidated(session.ID))
		return
	}
	request.generation = session.Generation
	c.mux.Unlock()
}

// take removes request if it is still pending, reporting whether the caller now owns its answer
func (c *Correlator) take(request *pending) bool {
	c.mux.Lock()
	if c.pending[request.key] != request {
		c.mux.Unlock()
		return false
	}
	delete(c.pending, request.key)
	count := len(c.pending)
	c.mux.Unlock()
	metrics.SetPending(count)
	return true
}

func (c *Correlator) forward(message *schema.Message, kind string) {
	if err := c.emitter.Emit(context.Background(), message); err != nil {
		c.logger.Error().Err(err).Msg("failed to write to local channel")
		return
	}
	metrics.RecordForwarded(kind)
}

func (c *Correlator) reply(ctx context.Context, id []byte, rpcError *jsonrpc.Error) error {
	message := schema.NewErrorResponse(id, rpcError)
	if err := c.emitter.Emit(ctx, message); err != nil {
		c.logger.Error().Err(err).Int("code", rpcError.Code).Msg("failed to write error reply")
		return err
	}
	metrics.RecordForwarded("synthesized")
	return nil
}

func sendError(session *client.Session, err error) *jsonrpc.Error {
	if errors.Is(err, client.ErrSessionInvalidated) {
		sessionID := ""
		if session != nil {
			sessionID = session.ID
		}
		return schema.NewSessionInvalidated(sessionID)
	}
	return schema.NewSendFailed(err)
}

func kindOf(message *schema.Message) string {
	switch {
	case message.IsRequest():
		return "request"
	case message.IsNotification():
		return "notification"
	case message.IsResponse():
		return "response"
	}
	return "other"
}

// New creates a correlator
func New(sender Sender, emitter Emitter, options ...Option) *Correlator {
	ret := &Correlator{
		sender:        sender,
		emitter:       emitter,
		logger:        zerolog.Nop(),
		timeout:       120 * time.Second,
		sweepInterval: time.Second,
		reinitialize:  true,
		now:           time.Now,
		queue:         make(chan *outbound, 1024),
		pending:       map[string]*pending{},
		dedup:         newDedup(1024, 5*time.Minute),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}
