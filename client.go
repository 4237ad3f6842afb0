package canclient

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Client owns exactly one open Transport for its whole lifetime. Send and
// Receive pass straight through without retries; switching transports means
// building a new Client.
//
// One goroutine may Send while another Receives. Concurrent calls in the same
// direction are serialised. Stop may be called from any goroutine and
// unblocks a pending Receive.
type Client struct {
	cfg    TransportConfig
	t      Transport
	logger *slog.Logger

	sendMu   sync.Mutex
	recvMu   sync.Mutex
	stopOnce sync.Once
	stopped  atomic.Bool
}

// Option configures client construction and selection.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	caps       *Capabilities
	metrics    *metrics.Set
	opener     Opener
	platform   *Platform
	frameLevel slog.Level
	frameOpts  LogOption
	frameFilt  FrameFilter
}

// WithLogger sets the logger for lifecycle and selection events. The
// default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCapabilities overrides capability detection.
func WithCapabilities(c Capabilities) Option {
	return func(o *options) { o.caps = &c }
}

// WithFrameLogging logs individual frames through the client logger.
func WithFrameLogging(level slog.Level, ops LogOption, filter FrameFilter) Option {
	return func(o *options) {
		o.frameLevel = level
		o.frameOpts = ops
		o.frameFilt = filter
	}
}

// WithMetricsSet records client metrics into set instead of the default
// VictoriaMetrics set.
func WithMetricsSet(set *metrics.Set) Option {
	return func(o *options) { o.metrics = set }
}

// WithOpener replaces Open, for injecting transports.
func WithOpener(fn Opener) Option {
	return func(o *options) { o.opener = fn }
}

// WithPlatform overrides platform detection in a Selector.
func WithPlatform(p Platform) Option {
	return func(o *options) { o.platform = &p }
}

func buildOptions(opts []Option) options {
	o := options{frameLevel: slog.LevelDebug}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = discardLogger
	}
	if o.opener == nil {
		o.opener = Open
	}
	if o.caps == nil {
		c := DetectCapabilities("")
		o.caps = &c
	}
	return o
}

func (o options) open(cfg TransportConfig) (Transport, error) {
	t, err := o.opener(cfg, *o.caps, o.logger)
	if err == nil && t == nil {
		err = openError(cfg.Kind, fmt.Errorf("opener returned no transport"))
	}
	countOpen(o.metrics, cfg.Kind, err)
	return t, err
}

func (o options) newClient(cfg TransportConfig, t Transport) *Client {
	t = newMeteredTransport(t, o.metrics)
	if o.frameOpts != LogNone {
		t = NewLoggedTransport(t, o.logger, o.frameLevel, o.frameOpts, o.frameFilt)
	}
	o.logger.Info("can bus initialized", "transport", t.Kind().String(), "info", t.Info())
	return &Client{cfg: cfg, t: t, logger: o.logger}
}

// NewClient opens exactly the transport described by cfg. Failures are
// returned; there is no fallback.
func NewClient(cfg TransportConfig, opts ...Option) (*Client, error) {
	o := buildOptions(opts)
	t, err := o.open(cfg)
	if err != nil {
		return nil, err
	}
	return o.newClient(cfg, t), nil
}

// NewBridgeClient opens a vendor bridge channel. An empty channel selects
// DefaultBridgeChannel.
func NewBridgeClient(channel string, bitrate uint32, opts ...Option) (*Client, error) {
	if channel == "" {
		channel = DefaultBridgeChannel
	}
	return NewClient(TransportConfig{Kind: KindBridge, Channel: channel, Bitrate: bitrate}, opts...)
}

// Kind returns the active transport kind.
func (c *Client) Kind() Kind { return c.t.Kind() }

// Info describes the active transport.
func (c *Client) Info() string { return c.t.Info() }

// Config returns the configuration the transport was opened with.
func (c *Client) Config() TransportConfig { return c.cfg }

// Send transmits one frame.
func (c *Client) Send(frame Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.stopped.Load() {
		return ioError(c.t.Kind(), "send", ErrClosed)
	}
	return c.t.Send(frame)
}

// SendData transmits a classical frame with a standard identifier.
func (c *Client) SendData(id uint32, data []byte) error {
	f, err := NewFrame(id, data)
	if err != nil {
		return configError(c.t.Kind(), err)
	}
	return c.Send(f)
}

// Receive waits up to timeout for a frame. ok is false with a nil error when
// the timeout expires.
func (c *Client) Receive(timeout time.Duration) (Frame, bool, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	if c.stopped.Load() {
		return Frame{}, false, ioError(c.t.Kind(), "receive", ErrClosed)
	}
	return c.t.Receive(timeout)
}

// Stop closes the transport. Only the first call has an effect; close
// failures are logged, not returned.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		if err := c.t.Close(); err != nil {
			c.logger.Warn("error shutting down can bus", "transport", c.t.Kind().String(), "error", err)
			return
		}
		c.logger.Info("can bus stopped", "transport", c.t.Kind().String())
	})
}
