package canclient

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Transport represents one open CAN channel which can send and receive
// frames.
//
// A Transport is not safe for concurrent use by multiple goroutines in the
// same direction: at most one Receive and one Send may run at a time. Close
// may be called from any goroutine and makes a pending Receive return an
// error.
type Transport interface {
	// Kind identifies the transport variant.
	Kind() Kind

	// Info describes the underlying channel for logs.
	Info() string

	// Receive waits up to timeout for the next frame. It returns ok=false
	// and a nil error when the timeout expires.
	Receive(timeout time.Duration) (f Frame, ok bool, err error)

	// Send transmits one frame. It does not retry.
	Send(frame Frame) error

	// Close releases resources. It is safe to call more than once.
	Close() error
}

// Kind identifies a transport variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindSocket
	KindVirtual
	KindMulticast
	KindBridge
)

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindVirtual:
		return "virtual"
	case KindMulticast:
		return "multicast"
	case KindBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// ParseKind maps a transport name to its Kind. The common interface names
// socketcan, udp_multicast and kuksa are accepted as aliases.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "socket", "socketcan":
		return KindSocket, nil
	case "virtual", "loopback":
		return KindVirtual, nil
	case "multicast", "udp_multicast", "udp-multicast":
		return KindMulticast, nil
	case "bridge", "kuksa", "pcan":
		return KindBridge, nil
	default:
		return KindUnknown, fmt.Errorf("%w: unknown transport %q", ErrConfig, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Defaults taken by the default selection entry point.
const (
	DefaultChannel        = "vcan0"
	DefaultBitrate        = 500000
	DefaultMulticastGroup = "239.0.0.1"
	DefaultMulticastPort  = 50000
	// DefaultBridgeChannel is the first PCAN USB channel.
	DefaultBridgeChannel = "PCAN_USBBUS1"
)

// TransportConfig selects and parameterises one transport.
type TransportConfig struct {
	Kind Kind `yaml:"kind"`
	// Channel is the interface name (socket), device channel (bridge),
	// multicast group address (multicast) or a free-form label (virtual).
	Channel string `yaml:"channel"`
	// Bitrate in bit/s. Advisory for transports configured out of band.
	Bitrate uint32 `yaml:"bitrate"`
	// Port is the UDP port; set exactly when Kind is KindMulticast.
	Port uint16 `yaml:"port"`
	// FDEnabled allows CAN FD frames.
	FDEnabled bool `yaml:"fd"`
}

// Validate checks field combinations.
func (c TransportConfig) Validate() error {
	switch c.Kind {
	case KindSocket, KindBridge:
		if c.Channel == "" {
			return configError(c.Kind, fmt.Errorf("channel is required"))
		}
		if c.Port != 0 {
			return configError(c.Kind, fmt.Errorf("port is only valid for multicast"))
		}
	case KindMulticast:
		if c.Port == 0 {
			return configError(c.Kind, fmt.Errorf("multicast requires a port"))
		}
		ip := net.ParseIP(c.Channel)
		if ip == nil || !ip.IsMulticast() {
			return configError(c.Kind, fmt.Errorf("channel %q is not a multicast address", c.Channel))
		}
	case KindVirtual:
		if c.Port != 0 {
			return configError(c.Kind, fmt.Errorf("port is only valid for multicast"))
		}
	default:
		return configError(c.Kind, fmt.Errorf("unknown transport kind %d", int(c.Kind)))
	}
	return nil
}

func (c TransportConfig) String() string {
	s := fmt.Sprintf("%s:%s", c.Kind, c.Channel)
	if c.Port != 0 {
		s += fmt.Sprintf(":%d", c.Port)
	}
	if c.FDEnabled {
		s += " fd"
	}
	return s
}

// Opener constructs a transport from a configuration. Open is the default;
// tests and callers may inject their own into a Selector.
type Opener func(cfg TransportConfig, caps Capabilities, logger *slog.Logger) (Transport, error)

// Open validates cfg and opens the matching transport variant. On failure
// nothing is left open.
func Open(cfg TransportConfig, caps Capabilities, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = discardLogger
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindSocket:
		return openSocket(cfg, logger)
	case KindVirtual:
		return OpenVirtual(cfg), nil
	case KindMulticast:
		return openMulticast(cfg, logger)
	case KindBridge:
		return openBridge(cfg, caps, logger)
	}
	return nil, configError(cfg.Kind, fmt.Errorf("unknown transport kind"))
}

var discardLogger = slog.New(slog.DiscardHandler)
