// Package backend runs the stdio servers fronted by the relay, one instance per session.
package backend

import (
	"context"
	"errors"
)

// ErrClosed is returned when writing to a stopped backend
var ErrClosed = errors.New("backend closed")

// Backend represents a line oriented JSON-RPC peer
type Backend interface {
	// Send writes one line to the backend input
	Send(ctx context.Context, line []byte) error
	// Output returns backend output lines; closed when the backend stops producing output
	Output() <-chan []byte
	// Done is closed once the backend exited
	Done() <-chan struct{}
	// Close stops the backend
	Close() error
}

// Factory creates a dedicated backend for a session
type Factory func(ctx context.Context, sessionID string) (Backend, error)
