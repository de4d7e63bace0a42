package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/mcpb/internal/metrics"
	"github.com/viant/mcpb/schema"
	"github.com/viant/mcpb/server/backend"
)

const waiterRetention = 5 * time.Minute

// waiter tracks one request submitted to the backend; touched is set on submit and on resolution
type waiter struct {
	touched  time.Time
	resolved atomic.Bool
}

// session owns one push stream and its dedicated backend
type session struct {
	id      string
	backend backend.Backend
	out     chan []byte
	logger  zerolog.Logger
	// retention bounds how long waiters are kept after submission or resolution
	retention time.Duration

	mux     sync.Mutex
	waiters map[string]*waiter

	done      chan struct{}
	closeOnce sync.Once
}

// submit registers a waiter for requests before writing line to the backend
func (s *session) submit(ctx context.Context, message *schema.Message, line []byte) error {
	var key string
	if message.IsRequest() {
		key = message.IDKey()
		now := time.Now()
		s.mux.Lock()
		s.prune(now)
		s.waiters[key] = &waiter{touched: now}
		s.mux.Unlock()
	}
	if err := s.backend.Send(ctx, line); err != nil {
		if key != "" {
			s.mux.Lock()
			delete(s.waiters, key)
			s.mux.Unlock()
		}
		return err
	}
	return nil
}

// deliver publishes one backend output line. A reply is published only by the caller that
// resolves its waiter; later copies of the same reply are dropped.
func (s *session) deliver(line []byte) {
	message, err := schema.Decode(line)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable backend output")
		metrics.RecordRelayOutput("malformed")
		return
	}
	if message.Method != "" || !message.HasID() {
		s.publish(line, "forwarded")
		return
	}
	s.mux.Lock()
	w, ok := s.waiters[message.IDKey()]
	s.mux.Unlock()
	if !ok {
		s.logger.Warn().RawJSON("id", message.Id).Msg("unmatched backend reply")
		metrics.RecordRelayOutput("unmatched")
		return
	}
	if !w.resolved.CompareAndSwap(false, true) {
		s.logger.Debug().RawJSON("id", message.Id).Msg("dropping duplicate backend reply")
		metrics.RecordRelayOutput("duplicate")
		return
	}
	s.mux.Lock()
	w.touched = time.Now()
	s.mux.Unlock()
	s.publish(line, "reply")
}

func (s *session) publish(line []byte, disposition string) {
	select {
	case s.out <- line:
		metrics.RecordRelayOutput(disposition)
	case <-s.done:
	}
}

// prune forgets waiters untouched for longer than retention, answered or not; caller holds mux
func (s *session) prune(now time.Time) {
	for key, w := range s.waiters {
		if now.Sub(w.touched) > s.retention {
			delete(s.waiters, key)
		}
	}
}

// pump publishes backend output until the backend stops producing it
func (s *session) pump() {
	defer close(s.out)
	for line := range s.backend.Output() {
		s.deliver(line)
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.backend.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close backend")
		}
	})
}

func newSession(id string, b backend.Backend, logger zerolog.Logger) *session {
	return &session{
		id:        id,
		backend:   b,
		out:       make(chan []byte, 64),
		logger:    logger.With().Str("session", id).Logger(),
		retention: waiterRetention,
		waiters:   map[string]*waiter{},
		done:      make(chan struct{}),
	}
}
