// Package channel implements the local newline-delimited JSON-RPC channel.
package channel

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/viant/mcpb/schema"
)

// DefaultMaxLineSize is the largest accepted input line
const DefaultMaxLineSize = 4 * 1024 * 1024

// ErrLineTooLong reports an input line above the configured limit
var ErrLineTooLong = errors.New("line exceeds max size")

// Handler handles a decoded local message
type Handler func(ctx context.Context, message *schema.Message)

// Channel reads messages from one stream and writes messages to another, one JSON object per line.
type Channel struct {
	reader      *bufio.Reader
	writer      *bufio.Writer
	mux         sync.Mutex
	maxLineSize int
	logger      zerolog.Logger
}

// Option represents option
type Option func(c *Channel)

// WithMaxLineSize sets input line limit
func WithMaxLineSize(size int) Option {
	return func(c *Channel) {
		if size > 0 {
			c.maxLineSize = size
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// Serve reads until end of input, returning nil on EOF. Blank, oversized and malformed lines are skipped.
func (c *Channel) Serve(ctx context.Context, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := c.readLine()
		if errors.Is(err, ErrLineTooLong) {
			c.logger.Warn().Int("limit", c.maxLineSize).Msg("dropping oversized line")
			continue
		}
		if len(bytes.TrimSpace(line)) > 0 {
			message, decodeErr := schema.Decode(line)
			if decodeErr != nil {
				c.logger.Warn().Err(decodeErr).Int("bytes", len(line)).Msg("dropping malformed line")
			} else {
				handler(ctx, message)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// readLine returns the next line without its terminator; an oversized line is consumed and reported.
// The limit applies to the content, so a \r\n terminator does not count against it.
func (c *Channel) readLine() ([]byte, error) {
	var line []byte
	oversized := false
	for {
		fragment, err := c.reader.ReadSlice('\n')
		if !oversized {
			if len(line)+len(fragment) > c.maxLineSize+len("\r\n") {
				oversized = true
				line = nil
			} else {
				line = append(line, fragment...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if !oversized {
			line = bytes.TrimRight(line, "\r\n")
			oversized = len(line) > c.maxLineSize
		}
		if oversized {
			if err == io.EOF {
				return nil, io.EOF
			}
			if err == nil {
				return nil, ErrLineTooLong
			}
			return nil, err
		}
		return line, err
	}
}

// Emit writes message as one line and flushes it
func (c *Channel) Emit(_ context.Context, message *schema.Message) error {
	data, err := message.Encode()
	if err != nil {
		return err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, err = c.writer.Write(data); err != nil {
		return err
	}
	if err = c.writer.WriteByte('\n'); err != nil {
		return err
	}
	return c.writer.Flush()
}

// New creates a channel
func New(reader io.Reader, writer io.Writer, options ...Option) *Channel {
	ret := &Channel{
		maxLineSize: DefaultMaxLineSize,
		logger:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(ret)
	}
	ret.reader = bufio.NewReaderSize(reader, 64*1024)
	ret.writer = bufio.NewWriter(writer)
	return ret
}
