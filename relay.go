package mcpb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/viant/mcpb/internal/config"
	"github.com/viant/mcpb/internal/credential"
	"github.com/viant/mcpb/internal/logx"
	"github.com/viant/mcpb/internal/metrics"
	"github.com/viant/mcpb/server"
	"github.com/viant/mcpb/server/backend"
)

// RelayOptions defines options for exposing a stdio server over HTTP/SSE
type RelayOptions struct {
	Port       int           `short:"p" long:"port" env:"PORT" description:"listening port (default: 3000)" yaml:"port,omitempty"`
	Token      string        `short:"t" long:"token" env:"MCP_API_KEY" description:"bearer token required from clients" yaml:"token,omitempty"`
	TokenURL   string        `long:"token-url" description:"secret resource holding the bearer token (file, s3, gs ...)" yaml:"tokenURL,omitempty"`
	TokenKey   string        `long:"token-key" description:"key decrypting the token resource (default: blowfish://default)" yaml:"tokenKey,omitempty"`
	ConfigURL  string        `short:"c" long:"config" description:"yaml config url (file, s3, gs ...)" yaml:"-"`
	Name       string        `short:"n" long:"name" description:"service name reported by /health" yaml:"name,omitempty"`
	SessionKey string        `long:"session-key" description:"session query parameter name" yaml:"sessionKey,omitempty"`
	SSEURI     string        `long:"sse-uri" description:"push stream path" yaml:"sseURI,omitempty"`
	MessageURI string        `long:"message-uri" description:"submission path" yaml:"messageURI,omitempty"`
	Heartbeat  time.Duration `long:"heartbeat" description:"keep-alive comment interval, negative disables (default: 15s)" yaml:"heartbeat,omitempty"`
	Grace      time.Duration `long:"grace" description:"wait for a backend to exit before escalating (default: 2s)" yaml:"grace,omitempty"`
	Dir        string        `long:"dir" description:"backend working directory" yaml:"dir,omitempty"`
	LogLevel   string        `long:"log-level" description:"log level" yaml:"logLevel,omitempty"`
	LogFormat  string        `long:"log-format" description:"log format" choice:"console" choice:"json" yaml:"logFormat,omitempty"`
	Cors       *server.Cors  `yaml:"cors,omitempty"`
	Command    []string      `yaml:"command,omitempty"`
	Args       struct {
		Command []string `positional-arg-name:"command" description:"backend command and arguments"`
	} `positional-args:"yes" yaml:"-"`
}

// Init sets defaults
func (o *RelayOptions) Init() {
	if o.Port == 0 {
		o.Port = 3000
	}
	if o.Heartbeat == 0 {
		o.Heartbeat = 15 * time.Second
	}
	if o.Grace == 0 {
		o.Grace = 2 * time.Second
	}
	if o.TokenURL != "" && o.TokenKey == "" {
		o.TokenKey = credential.DefaultSecretKey
	}
}

// Validate checks the options
func (o *RelayOptions) Validate() error {
	if len(o.Args.Command) > 0 {
		o.Command = o.Args.Command
	}
	if len(o.Command) == 0 || o.Command[0] == "" {
		return server.ErrNoBackend
	}
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port: %v", o.Port)
	}
	return nil
}

// Addr returns the listening address
func (o *RelayOptions) Addr() string {
	return fmt.Sprintf(":%v", o.Port)
}

// NewRelay creates a relay server for the supplied options
func NewRelay(options *RelayOptions) (*server.Server, error) {
	options.Init()
	if err := options.Validate(); err != nil {
		return nil, err
	}
	token, err := credential.Resolve(context.Background(), options.Token, options.TokenURL, options.TokenKey)
	if err != nil {
		return nil, err
	}
	logger := logx.New(&logx.Options{Level: options.LogLevel, Format: options.LogFormat})
	registry := metrics.NewRegistry()

	processOptions := []backend.Option{
		backend.WithLogger(logger.With().Str("component", "backend").Logger()),
		backend.WithGrace(options.Grace),
	}
	if options.Dir != "" {
		processOptions = append(processOptions, backend.WithDir(options.Dir))
	}
	serverOptions := []server.Option{
		server.WithCommand(options.Command[0], options.Command[1:], processOptions...),
		server.WithToken(token),
		server.WithLogger(logger),
		server.WithRegistry(registry),
		server.WithHeartbeat(max(options.Heartbeat, 0)),
	}
	if options.Name != "" {
		serverOptions = append(serverOptions, server.WithName(options.Name))
	}
	if options.SessionKey != "" {
		serverOptions = append(serverOptions, server.WithSessionKey(options.SessionKey))
	}
	if options.SSEURI != "" {
		serverOptions = append(serverOptions, server.WithSSEURI(options.SSEURI))
	}
	if options.MessageURI != "" {
		serverOptions = append(serverOptions, server.WithMessageURI(options.MessageURI))
	}
	if options.Cors != nil {
		serverOptions = append(serverOptions, server.WithCORS(options.Cors))
	}
	if token == "" {
		logger.Warn().Msg("no token configured, relay is open")
	}
	return server.New(serverOptions...)
}

// ParseRelayOptions parses command line arguments; values from a config file are overridden by flags.
func ParseRelayOptions(args []string) (*RelayOptions, error) {
	options := &RelayOptions{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return nil, err
	}
	if options.ConfigURL == "" {
		return options, nil
	}
	loaded := &RelayOptions{}
	if err := config.Load(context.Background(), options.ConfigURL, loaded); err != nil {
		return nil, err
	}
	if _, err := flags.ParseArgs(loaded, args); err != nil {
		return nil, err
	}
	return loaded, nil
}

// RunRelay serves the relay until interrupted
func RunRelay(args []string) error {
	options, err := ParseRelayOptions(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}
	srv, err := NewRelay(options)
	if err != nil {
		return err
	}
	defer srv.Close()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	httpServer := srv.HTTP(ctx, options.Addr())
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	if err = httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
