package client

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Option represents option
type Option func(c *Client)

// WithHTTPClient sets the base http client; its timeout must be zero since the push stream is long lived.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithToken sets the bearer token sent on the stream and every submission
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithSessionKey overrides the session query parameter name
func WithSessionKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.sessionKey = key
		}
	}
}

// WithSessionWait bounds the wait for the session id
func WithSessionWait(wait time.Duration) Option {
	return func(c *Client) {
		if wait > 0 {
			c.sessionWait = wait
		}
	}
}

// WithFallback sets the behaviour when no session id arrives in time
func WithFallback(fallback Fallback) Option {
	return func(c *Client) {
		c.fallback = fallback
	}
}

// WithMessagePath sets the submission path used for self-assigned sessions
func WithMessagePath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.messagePath = path
		}
	}
}

// WithBackoff sets reconnect and retry delays
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		if min > 0 {
			c.backoffMin = min
		}
		if max > 0 {
			c.backoffMax = max
		}
	}
}

// WithSendRetries sets how many times a failed submission is retried on the same session
func WithSendRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.sendRetries = retries
		}
	}
}

func WithListener(listener Listener) Option {
	return func(c *Client) {
		c.listener = listener
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
