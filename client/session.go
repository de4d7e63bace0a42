package client

import (
	"net/url"
	"sync"
	"sync/atomic"
)

// State represents the session life cycle
type State int32

const (
	Connecting State = iota
	AwaitingSessionID
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case AwaitingSessionID:
		return "awaiting-session-id"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Session represents one push stream connection. Generation increases with every connection attempt.
type Session struct {
	ID           string
	Generation   uint64
	MessageURL   *url.URL
	SelfAssigned bool

	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// State returns current state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session is closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the session was closed
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Session) close(err error) bool {
	closed := false
	s.closeOnce.Do(func() {
		s.err = err
		s.setState(Closed)
		close(s.done)
		closed = true
	})
	return closed
}

// NewSession creates a session in connecting state
func NewSession(generation uint64) *Session {
	return &Session{Generation: generation, done: make(chan struct{})}
}
