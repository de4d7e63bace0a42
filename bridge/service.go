package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/viant/mcpb/bridge/channel"
	"github.com/viant/mcpb/bridge/correlator"
	"github.com/viant/mcpb/client"
	"github.com/viant/mcpb/internal/credential"
	"github.com/viant/mcpb/internal/logx"
	"github.com/viant/mcpb/internal/metrics"
	"github.com/viant/mcpb/schema"
)

// Service bridges a local line channel to a remote SSE server
type Service struct {
	options    *Options
	logger     zerolog.Logger
	channel    *channel.Channel
	client     *client.Client
	correlator *correlator.Correlator
	registry   *prometheus.Registry
}

// Run serves until the local input ends, ctx is done or the remote rejects the bridge.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.correlator.Start(ctx)

	clientDone := make(chan error, 1)
	go func() { clientDone <- s.client.Run(ctx) }()
	if s.options.MetricsAddr != "" {
		server := &http.Server{Addr: s.options.MetricsAddr, Handler: s.metricsHandler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Str("addr", s.options.MetricsAddr).Msg("metrics server failed")
			}
		}()
		defer server.Close()
	}
	inputDone := make(chan error, 1)
	go func() { inputDone <- s.channel.Serve(ctx, s.submit) }()
	s.logger.Info().Str("url", s.options.URL).Msg("bridge started")

	select {
	case err := <-inputDone:
		s.logger.Info().Int("pending", s.correlator.Pending()).Msg("local input closed")
		s.shutdown(s.options.DrainTimeout)
		return err
	case err := <-clientDone:
		s.shutdown(0)
		return err
	case <-ctx.Done():
		s.shutdown(0)
		return nil
	}
}

func (s *Service) submit(ctx context.Context, message *schema.Message) {
	if err := s.correlator.Submit(ctx, message); err != nil {
		s.logger.Warn().Err(err).Str("method", message.Method).Msg("failed to submit message")
	}
}

func (s *Service) shutdown(drain time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	s.correlator.Close(ctx)
	_ = s.client.Close()
}

func (s *Service) metricsHandler() http.Handler {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return router
}

// listener hands session events to the correlator
type listener struct {
	service *Service
}

func (l *listener) OnSessionReady(session *client.Session) {
	l.service.correlator.OnSessionReady(session)
}

func (l *listener) OnMessage(session *client.Session, data []byte) {
	l.service.correlator.OnMessage(session, data)
}

func (l *listener) OnSessionClosed(session *client.Session, err error) {
	l.service.correlator.OnSessionClosed(session, err)
}

// New creates a bridge reading local messages from in and writing replies to out
func New(ctx context.Context, options *Options, in io.Reader, out io.Writer) (*Service, error) {
	options.Init()
	if err := options.Validate(); err != nil {
		return nil, err
	}
	token, err := credential.Resolve(ctx, options.Token, options.TokenURL, options.TokenKey)
	if err != nil {
		return nil, err
	}
	logger := logx.New(&logx.Options{Level: options.LogLevel, Format: options.LogFormat})
	for _, warning := range options.Warnings() {
		logger.Warn().Msg(warning)
	}
	ret := &Service{options: options, logger: logger.With().Str("component", "bridge").Logger(), registry: metrics.NewRegistry()}
	ret.channel = channel.New(in, out,
		channel.WithMaxLineSize(options.MaxLineSize),
		channel.WithLogger(logger.With().Str("component", "channel").Logger()))

	sendRetries := options.SendRetries
	if sendRetries < 0 {
		sendRetries = 0
	}
	ret.client, err = client.New(options.URL,
		client.WithToken(token),
		client.WithSessionKey(options.SessionKey),
		client.WithSessionWait(options.SessionWait),
		client.WithFallback(client.Fallback(options.SessionFallback)),
		client.WithMessagePath(options.MessagePath),
		client.WithBackoff(options.BackoffMin, options.BackoffMax),
		client.WithSendRetries(sendRetries),
		client.WithListener(&listener{service: ret}),
		client.WithLogger(logger.With().Str("component", "client").Logger()))
	if err != nil {
		return nil, err
	}
	ret.correlator = correlator.New(ret.client, ret.channel,
		correlator.WithRequestTimeout(options.RequestTimeout),
		correlator.WithSweepInterval(options.SweepInterval),
		correlator.WithDedup(options.DedupCapacity, options.DedupWindow),
		correlator.WithReinitialize(!options.NoReinitialize),
		correlator.WithQueueSize(options.QueueSize),
		correlator.WithLogger(logger.With().Str("component", "correlator").Logger()))
	return ret, nil
}
