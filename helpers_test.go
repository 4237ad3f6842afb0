package canclient

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// fakeTransport wraps a virtual transport and counts Close calls.
type fakeTransport struct {
	*VirtualTransport
	kind     Kind
	closes   atomic.Int32
	sendErr  error
	closeErr error
}

func newFakeTransport(k Kind) *fakeTransport {
	return &fakeTransport{VirtualTransport: OpenVirtual(TransportConfig{}), kind: k}
}

func (f *fakeTransport) Kind() Kind { return f.kind }

func (f *fakeTransport) Send(frame Frame) error {
	if f.sendErr != nil {
		return ioError(f.kind, "send", f.sendErr)
	}
	return f.VirtualTransport.Send(frame)
}

func (f *fakeTransport) Close() error {
	f.closes.Add(1)
	if err := f.VirtualTransport.Close(); err != nil {
		return err
	}
	return f.closeErr
}

// scriptedOpener fails every kind listed in fail and records the order of
// attempts.
type scriptedOpener struct {
	mu       sync.Mutex
	fail     map[Kind]error
	attempts []Kind
	opened   []*fakeTransport
}

func (s *scriptedOpener) open(cfg TransportConfig, _ Capabilities, _ *slog.Logger) (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, cfg.Kind)
	if err, ok := s.fail[cfg.Kind]; ok {
		return nil, openError(cfg.Kind, err)
	}
	t := newFakeTransport(cfg.Kind)
	s.opened = append(s.opened, t)
	return t, nil
}

func (s *scriptedOpener) tried() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Kind(nil), s.attempts...)
}

var errUnavailable = errors.New("unavailable")

// stubBridge is a BridgeDriver backed by virtual transports.
type stubBridge struct {
	name    string
	openErr error
	stops   atomic.Int32
}

func (b *stubBridge) Name() string { return b.name }

func (b *stubBridge) Open(channel string, bitrate uint32, fd bool) (BridgeDevice, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &stubDevice{v: OpenVirtual(TransportConfig{Channel: channel, FDEnabled: fd}), parent: b}, nil
}

type stubDevice struct {
	v      *VirtualTransport
	parent *stubBridge
}

func (d *stubDevice) Send(f Frame) error { return d.v.Send(f) }
func (d *stubDevice) Receive(timeout time.Duration) (Frame, bool, error) {
	return d.v.Receive(timeout)
}
func (d *stubDevice) Stop() error {
	d.parent.stops.Add(1)
	return d.v.Close()
}
