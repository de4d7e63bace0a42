package bridge

import (
	"fmt"
	"net/url"
	"time"

	"github.com/viant/mcpb/client"
	"github.com/viant/mcpb/internal/credential"
)

// Options represents bridge options, loadable from flags, environment and a YAML file
type Options struct {
	URL             string        `short:"u" long:"url" description:"remote SSE endpoint url" yaml:"url,omitempty"`
	Token           string        `short:"t" long:"token" env:"MCPB_TOKEN" description:"bearer token" yaml:"token,omitempty"`
	TokenURL        string        `long:"token-url" description:"secret resource holding the bearer token (file, s3, gs ...)" yaml:"tokenURL,omitempty"`
	TokenKey        string        `long:"token-key" description:"key decrypting the token resource (default: blowfish://default)" yaml:"tokenKey,omitempty"`
	ConfigURL       string        `short:"c" long:"config" description:"yaml config url (file, s3, gs ...)" yaml:"-"`
	SessionKey      string        `long:"session-key" description:"session query parameter name (default: session_id)" yaml:"sessionKey,omitempty"`
	SessionWait     time.Duration `long:"session-wait" description:"max wait for a session id (default: 30s)" yaml:"sessionWait,omitempty"`
	SessionFallback string        `long:"session-fallback" description:"behaviour when no session id arrives" choice:"fail" choice:"generate" yaml:"sessionFallback,omitempty"`
	MessagePath     string        `long:"message-path" description:"submission path for generated sessions (default: /messages/)" yaml:"messagePath,omitempty"`
	BackoffMin      time.Duration `long:"backoff-min" description:"initial reconnect delay (default: 500ms)" yaml:"backoffMin,omitempty"`
	BackoffMax      time.Duration `long:"backoff-max" description:"max reconnect delay (default: 30s)" yaml:"backoffMax,omitempty"`
	SendRetries     int           `long:"send-retries" description:"retries of a failed submission, negative disables (default: 3)" yaml:"sendRetries,omitempty"`
	RequestTimeout  time.Duration `long:"timeout" description:"request reply timeout (default: 120s)" yaml:"requestTimeout,omitempty"`
	SweepInterval   time.Duration `long:"sweep" description:"timeout sweep interval (default: 1s)" yaml:"sweepInterval,omitempty"`
	DedupCapacity   int           `long:"dedup-capacity" description:"duplicate reply cache size (default: 1024)" yaml:"dedupCapacity,omitempty"`
	DedupWindow     time.Duration `long:"dedup-window" description:"duplicate reply cache age (default: 5m)" yaml:"dedupWindow,omitempty"`
	DrainTimeout    time.Duration `long:"drain" description:"wait for outstanding replies at end of input (default: 5s)" yaml:"drainTimeout,omitempty"`
	MaxLineSize     int           `long:"max-line" description:"max local line size in bytes (default: 4MiB)" yaml:"maxLineSize,omitempty"`
	QueueSize       int           `long:"queue" description:"outbound message queue capacity (default: 1024)" yaml:"queueSize,omitempty"`
	NoReinitialize  bool          `long:"no-reinitialize" description:"do not replay initialize on a replacement session" yaml:"noReinitialize,omitempty"`
	LogLevel        string        `long:"log-level" description:"log level" yaml:"logLevel,omitempty"`
	LogFormat       string        `long:"log-format" description:"log format" choice:"console" choice:"json" yaml:"logFormat,omitempty"`
	MetricsAddr     string        `long:"metrics" description:"address serving prometheus metrics, disabled when empty" yaml:"metricsAddr,omitempty"`
}

// Init sets defaults
func (o *Options) Init() {
	if o.SessionKey == "" {
		o.SessionKey = client.SessionKey
	}
	if o.SessionWait == 0 {
		o.SessionWait = 30 * time.Second
	}
	if o.SessionFallback == "" {
		o.SessionFallback = string(client.FallbackFail)
	}
	if o.MessagePath == "" {
		o.MessagePath = "/messages/"
	}
	if o.BackoffMin == 0 {
		o.BackoffMin = 500 * time.Millisecond
	}
	if o.BackoffMax == 0 {
		o.BackoffMax = 30 * time.Second
	}
	if o.SendRetries == 0 {
		o.SendRetries = 3
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 120 * time.Second
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = time.Second
	}
	if o.DedupCapacity == 0 {
		o.DedupCapacity = 1024
	}
	if o.DedupWindow == 0 {
		o.DedupWindow = 5 * time.Minute
	}
	if o.DrainTimeout == 0 {
		o.DrainTimeout = 5 * time.Second
	}
	if o.MaxLineSize == 0 {
		o.MaxLineSize = 4 * 1024 * 1024
	}
	if o.QueueSize == 0 {
		o.QueueSize = 1024
	}
	if o.TokenURL != "" && o.TokenKey == "" {
		o.TokenKey = credential.DefaultSecretKey
	}
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	if o.LogFormat == "" {
		o.LogFormat = "console"
	}
}

// Validate checks options
func (o *Options) Validate() error {
	if o.URL == "" {
		return fmt.Errorf("url was empty")
	}
	URL, err := url.Parse(o.URL)
	if err != nil {
		return fmt.Errorf("invalid url %v: %w", o.URL, err)
	}
	if URL.Scheme != "http" && URL.Scheme != "https" {
		return fmt.Errorf("invalid url %v: expected http or https", o.URL)
	}
	switch client.Fallback(o.SessionFallback) {
	case client.FallbackFail, client.FallbackGenerate:
	default:
		return fmt.Errorf("invalid session fallback: %v", o.SessionFallback)
	}
	if o.BackoffMin > o.BackoffMax {
		return fmt.Errorf("backoff min %v exceeds max %v", o.BackoffMin, o.BackoffMax)
	}
	if o.DedupCapacity < 1 {
		return fmt.Errorf("dedup capacity must be positive")
	}
	if o.RequestTimeout < 0 || o.SweepInterval < 0 || o.DrainTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Warnings returns settings that are valid but likely wrong
func (o *Options) Warnings() []string {
	var result []string
	if o.SessionWait < 10*time.Second {
		result = append(result, fmt.Sprintf("session wait %v is short, slow servers may not send the session id in time", o.SessionWait))
	}
	if o.SweepInterval > o.RequestTimeout {
		result = append(result, fmt.Sprintf("sweep interval %v exceeds request timeout %v", o.SweepInterval, o.RequestTimeout))
	}
	return result
}
