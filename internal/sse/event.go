// Package sse implements the text/event-stream wire format used by push streams.
package sse

import "time"

// Event represents a single server-sent event
type Event struct {
	ID    string
	Event string
	Data  string
	Retry time.Duration
}

// Name returns the event type, defaulting to "message"
func (e *Event) Name() string {
	if e.Event == "" {
		return "message"
	}
	return e.Event
}
