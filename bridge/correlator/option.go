package correlator

import (
	"time"

	"github.com/rs/zerolog"
)

// Option represents option
type Option func(c *Correlator)

// WithRequestTimeout sets how long a request may wait for its reply
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Correlator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithSweepInterval sets the timeout sweep period
func WithSweepInterval(interval time.Duration) Option {
	return func(c *Correlator) {
		if interval > 0 {
			c.sweepInterval = interval
		}
	}
}

// WithDedup sets the duplicate reply cache bounds; a zero window keeps entries until evicted by capacity.
func WithDedup(capacity int, window time.Duration) Option {
	return func(c *Correlator) {
		c.dedup = newDedup(capacity, window)
	}
}

// WithReinitialize controls replaying the initialize handshake on replacement sessions
func WithReinitialize(enabled bool) Option {
	return func(c *Correlator) {
		c.reinitialize = enabled
	}
}

// WithQueueSize sets the outbound queue capacity
func WithQueueSize(size int) Option {
	return func(c *Correlator) {
		if size > 0 {
			c.queue = make(chan *outbound, size)
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Correlator) {
		c.logger = logger
	}
}

// WithClock overrides time source
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) {
		c.now = now
	}
}
