package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/viant/mcpb/server/backend"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithBackend sets the backend factory
func WithBackend(factory backend.Factory) Option {
	return func(s *Server) error {
		s.factory = factory
		return nil
	}
}

// WithCommand runs a dedicated process of the supplied command per session
func WithCommand(name string, args []string, options ...backend.Option) Option {
	return func(s *Server) error {
		if name == "" {
			return ErrNoBackend
		}
		s.factory = backend.Command(name, args, options...)
		return nil
	}
}

// WithToken requires the bearer token on every route except health
func WithToken(token string) Option {
	return func(s *Server) error {
		s.token = token
		return nil
	}
}

// WithName sets the service name reported by the health route
func WithName(name string) Option {
	return func(s *Server) error {
		s.name = name
		return nil
	}
}

// WithSessionKey sets the query parameter carrying the session id
func WithSessionKey(key string) Option {
	return func(s *Server) error {
		s.sessionKey = key
		return nil
	}
}

// WithSSEURI sets the push stream path
func WithSSEURI(uri string) Option {
	return func(s *Server) error {
		s.sseURI = uri
		return nil
	}
}

// WithMessageURI sets the submission path
func WithMessageURI(uri string) Option {
	return func(s *Server) error {
		s.messageURI = uri
		return nil
	}
}

// WithCORS adds a new CORS handler to the server.
func WithCORS(cors *Cors) Option {
	return func(s *Server) error {
		s.cors = cors
		return nil
	}
}

// WithHeartbeat sets the keep-alive comment interval, zero disables it
func WithHeartbeat(interval time.Duration) Option {
	return func(s *Server) error {
		s.heartbeat = interval
		return nil
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithRegistry sets the registry served on the metrics route
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) error {
		s.registry = registry
		return nil
	}
}
