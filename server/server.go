package server

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/viant/mcpb/internal/collection"
	"github.com/viant/mcpb/server/backend"
)

// ErrNoBackend is returned when the server has no way to start a backend
var ErrNoBackend = errors.New("no backend specified")

// Server relays HTTP/SSE sessions to dedicated stdio backends
type Server struct {
	factory    backend.Factory
	token      string
	name       string
	sessionKey string
	sseURI     string
	messageURI string
	cors       *Cors
	heartbeat  time.Duration
	logger     zerolog.Logger
	registry   *prometheus.Registry
	sessions   *collection.SyncMap[string, *session]
}

// Sessions returns the number of connected sessions
func (s *Server) Sessions() int {
	return s.sessions.Len()
}

// Close terminates every session backend
func (s *Server) Close() error {
	s.sessions.Range(func(id string, _ *session) bool {
		if sess, ok := s.sessions.LoadAndDelete(id); ok {
			sess.close()
		}
		return true
	})
	return nil
}

// New creates a new Server instance
func New(options ...Option) (*Server, error) {
	s := &Server{
		name:       "mcpr",
		sessionKey: "session_id",
		sseURI:     "/sse",
		messageURI: "/messages/",
		cors:       DefaultCors(),
		heartbeat:  15 * time.Second,
		logger:     zerolog.Nop(),
		sessions:   collection.NewSyncMap[string, *session](),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	if s.factory == nil {
		return nil, ErrNoBackend
	}
	s.logger = s.logger.With().Str("component", "relay").Logger()
	return s, nil
}
