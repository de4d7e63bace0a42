package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures a logger
type Options struct {
	Level  string
	Format string
	Writer io.Writer
}

// New creates a logger; output defaults to stderr since stdout may carry protocol traffic.
func New(options *Options) zerolog.Logger {
	if options == nil {
		options = &Options{}
	}
	writer := options.Writer
	if writer == nil {
		writer = os.Stderr
	}
	if !strings.EqualFold(options.Format, FormatJSON) {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}
	return zerolog.New(writer).Level(ParseLevel(options.Level)).With().Timestamp().Logger()
}

// ParseLevel converts a level name, DEBUG=true forces debug
func ParseLevel(name string) zerolog.Level {
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		return zerolog.DebugLevel
	}
	if name == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
