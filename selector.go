package canclient

import (
	"errors"
	"runtime"
	"strings"
)

// Platform groups operating systems by which CAN transports they offer.
type Platform int

const (
	PosixLike Platform = iota
	WindowsLike
)

func (p Platform) String() string {
	if p == WindowsLike {
		return "windows"
	}
	return "posix"
}

// DetectPlatform classifies the running OS.
func DetectPlatform() Platform { return platformFor(runtime.GOOS) }

func platformFor(goos string) Platform {
	if goos == "windows" {
		return WindowsLike
	}
	return PosixLike
}

// PlatformPredicate decides whether a policy entry applies.
type PlatformPredicate func(Platform) bool

// OnPlatform matches exactly p.
func OnPlatform(p Platform) PlatformPredicate {
	return func(q Platform) bool { return q == p }
}

// AnyPlatform matches every platform.
func AnyPlatform() PlatformPredicate {
	return func(Platform) bool { return true }
}

// PolicyEntry is one candidate transport in a selection policy.
type PolicyEntry struct {
	When   PlatformPredicate
	Config TransportConfig
}

// Policy is an ordered candidate list. Earlier entries win.
type Policy []PolicyEntry

// Candidates returns the configs that apply to p, in order.
func (pol Policy) Candidates(p Platform) []TransportConfig {
	var out []TransportConfig
	for _, e := range pol {
		if e.When == nil || e.When(p) {
			out = append(out, e.Config)
		}
	}
	return out
}

// DefaultPolicy is the built-in fallback order:
//
//	posix:   socket -> bridge -> virtual
//	windows: bridge -> multicast (239.0.0.1:50000) -> virtual
func DefaultPolicy(channel string, bitrate uint32, fd bool) Policy {
	if channel == "" {
		channel = DefaultChannel
	}
	posix, windows := OnPlatform(PosixLike), OnPlatform(WindowsLike)
	return Policy{
		{When: posix, Config: TransportConfig{Kind: KindSocket, Channel: channel, Bitrate: bitrate, FDEnabled: fd}},
		{When: posix, Config: TransportConfig{Kind: KindBridge, Channel: channel, Bitrate: bitrate, FDEnabled: fd}},
		{When: windows, Config: TransportConfig{Kind: KindBridge, Channel: channel, Bitrate: bitrate, FDEnabled: fd}},
		{When: windows, Config: TransportConfig{
			Kind:      KindMulticast,
			Channel:   DefaultMulticastGroup,
			Port:      DefaultMulticastPort,
			Bitrate:   bitrate,
			FDEnabled: fd,
		}},
		{When: AnyPlatform(), Config: TransportConfig{Kind: KindVirtual, Channel: channel, FDEnabled: fd}},
	}
}

// Selector opens the first candidate of a policy that works on the current
// platform. When every candidate fails it falls back to a virtual
// transport, so selection always yields a Client.
type Selector struct {
	platform Platform
	policy   Policy
	opts     options
}

// NewSelector builds a selector. Capabilities and platform are resolved
// here, once.
func NewSelector(policy Policy, opts ...Option) *Selector {
	o := buildOptions(opts)
	p := DetectPlatform()
	if o.platform != nil {
		p = *o.platform
	}
	return &Selector{platform: p, policy: policy, opts: o}
}

// Platform returns the platform the selector evaluates the policy for.
func (s *Selector) Platform() Platform { return s.platform }

// Candidates lists the configs Select will try, without the terminal
// virtual fallback.
func (s *Selector) Candidates() []TransportConfig { return s.policy.Candidates(s.platform) }

// Select tries each candidate in order and returns a Client for the first
// one that opens. A failed candidate leaves nothing open behind it.
func (s *Selector) Select() *Client {
	log := s.opts.logger.With("platform", s.platform.String())
	cands := s.Candidates()
	log.Info("selecting can transport", "candidates", describe(cands))

	fd := false
	channel := ""
	for i, cfg := range cands {
		fd = fd || cfg.FDEnabled
		if channel == "" && cfg.Kind != KindMulticast {
			channel = cfg.Channel
		}
		t, err := s.opts.open(cfg)
		if err != nil {
			log.Warn("can transport unavailable",
				"transport", cfg.Kind.String(),
				"channel", cfg.Channel,
				"class", errorClass(err),
				"error", err,
			)
			continue
		}
		log.Info("can transport selected", "transport", cfg.Kind.String(), "attempt", i+1)
		return s.opts.newClient(cfg, t)
	}

	if channel == "" {
		channel = DefaultChannel
	}
	cfg := TransportConfig{Kind: KindVirtual, Channel: channel, FDEnabled: fd}
	log.Warn("using virtual can as fallback (isolated per process)", "channel", channel)
	countOpen(s.opts.metrics, KindVirtual, nil)
	return s.opts.newClient(cfg, OpenVirtual(cfg))
}

func describe(cfgs []TransportConfig) string {
	parts := make([]string, len(cfgs))
	for i, c := range cfgs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " -> ")
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrOpen):
		return "open"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "unknown"
	}
}

// DefaultSelection is the name that selects the fallback chain in
// NewClientByName.
const DefaultSelection = "default"

// NewDefaultClient runs the default policy for the current platform. It
// always returns a usable Client, falling back to a virtual transport.
func NewDefaultClient(channel string, bitrate uint32, fd bool, opts ...Option) *Client {
	return NewSelector(DefaultPolicy(channel, bitrate, fd), opts...).Select()
}

// NewClientByName opens a client by transport name. "default" (or "") runs
// the fallback chain built from cfg's channel, bitrate and FD flag; any
// other name opens only that transport and returns its error.
func NewClientByName(name string, cfg TransportConfig, opts ...Option) (*Client, error) {
	if name == "" || strings.EqualFold(name, DefaultSelection) {
		return NewDefaultClient(cfg.Channel, cfg.Bitrate, cfg.FDEnabled, opts...), nil
	}
	k, err := ParseKind(name)
	if err != nil {
		return nil, configError(KindUnknown, err)
	}
	cfg.Kind = k
	return NewClient(cfg, opts...)
}
