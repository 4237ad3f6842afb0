package canclient

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// BridgeDevice is an open channel on vendor CAN hardware.
type BridgeDevice interface {
	Send(frame Frame) error
	Receive(timeout time.Duration) (Frame, bool, error)
	Stop() error
}

// BridgeDriver is the vendor capability: it opens channels on proprietary
// hardware. Vendor packages register a driver from an init function.
type BridgeDriver interface {
	Name() string
	Open(channel string, bitrate uint32, fd bool) (BridgeDevice, error)
}

var (
	bridgeDrivers = xsync.NewMapOf[string, BridgeDriver]()
	// bridgeClaims holds the driver channels currently open, keyed by
	// claimKey. Vendor channels admit a single owner.
	bridgeClaims = xsync.NewMapOf[string, struct{}]()
)

func claimKey(driver, channel string) string { return driver + "\x00" + channel }

// RegisterBridge makes a driver discoverable by DetectCapabilities. A driver
// registered under an existing name replaces it.
func RegisterBridge(d BridgeDriver) {
	if d == nil || d.Name() == "" {
		panic("canclient: RegisterBridge with nil driver or empty name")
	}
	bridgeDrivers.Store(d.Name(), d)
}

// UnregisterBridge removes a driver.
func UnregisterBridge(name string) { bridgeDrivers.Delete(name) }

// Bridges lists registered driver names in sorted order.
func Bridges() []string {
	names := make([]string, 0, bridgeDrivers.Size())
	bridgeDrivers.Range(func(name string, _ BridgeDriver) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Capabilities records optional capabilities resolved once at startup and
// handed to Open and the Selector.
type Capabilities struct {
	// Bridge is the vendor driver; nil when no bridge is present.
	Bridge BridgeDriver
}

// BridgeAvailable reports whether a vendor bridge can be tried.
func (c Capabilities) BridgeAvailable() bool { return c.Bridge != nil }

// DetectCapabilities resolves the bridge driver. An empty name picks the
// first registered driver in name order.
func DetectCapabilities(name string) Capabilities {
	if name != "" {
		d, _ := bridgeDrivers.Load(name)
		return Capabilities{Bridge: d}
	}
	if names := Bridges(); len(names) > 0 {
		d, _ := bridgeDrivers.Load(names[0])
		return Capabilities{Bridge: d}
	}
	return Capabilities{}
}

// bridgeTransport adapts a BridgeDevice to Transport.
type bridgeTransport struct {
	cfg    TransportConfig
	driver string
	dev    BridgeDevice
	once   sync.Once
	err    error
}

func openBridge(cfg TransportConfig, caps Capabilities, logger *slog.Logger) (Transport, error) {
	if !caps.BridgeAvailable() {
		return nil, openError(KindBridge, ErrBridgeUnavailable)
	}
	name := caps.Bridge.Name()
	key := claimKey(name, cfg.Channel)
	if _, taken := bridgeClaims.LoadOrStore(key, struct{}{}); taken {
		return nil, openError(KindBridge, fmt.Errorf("%s channel %s: %w", name, cfg.Channel, ErrChannelInUse))
	}
	dev, err := caps.Bridge.Open(cfg.Channel, cfg.Bitrate, cfg.FDEnabled)
	if err == nil && dev == nil {
		err = fmt.Errorf("driver returned no device")
	}
	if err != nil {
		bridgeClaims.Delete(key)
		return nil, openError(KindBridge, fmt.Errorf("%s: %w", name, err))
	}
	logger.Debug("bridge channel opened", "driver", name, "channel", cfg.Channel, "bitrate", cfg.Bitrate)
	return &bridgeTransport{cfg: cfg, driver: name, dev: dev}, nil
}

func (b *bridgeTransport) Kind() Kind { return KindBridge }

func (b *bridgeTransport) Info() string {
	return fmt.Sprintf("%s bridge channel %q at %d bit/s", b.driver, b.cfg.Channel, b.cfg.Bitrate)
}

func (b *bridgeTransport) Send(frame Frame) error {
	if err := checkMTU(KindBridge, b.cfg.FDEnabled, frame); err != nil {
		return err
	}
	if err := b.dev.Send(frame); err != nil {
		return ioError(KindBridge, "send", err)
	}
	return nil
}

func (b *bridgeTransport) Receive(timeout time.Duration) (Frame, bool, error) {
	f, ok, err := b.dev.Receive(timeout)
	if err != nil {
		return Frame{}, false, ioError(KindBridge, "receive", err)
	}
	if !ok {
		return Frame{}, false, nil
	}
	if _, stamped := f.Timestamp(); !stamped {
		f = f.withTimestamp(time.Now())
	}
	return f, true, nil
}

func (b *bridgeTransport) Close() error {
	b.once.Do(func() {
		b.err = b.dev.Stop()
		bridgeClaims.Delete(claimKey(b.driver, b.cfg.Channel))
	})
	return b.err
}
