package canclient

import (
	"fmt"
	"sync"
	"time"
)

// virtualQueueLen bounds the loopback queue of a virtual transport.
const virtualQueueLen = 256

// VirtualTransport is an in-memory CAN channel for tests and simulations.
// Every frame sent on an instance is delivered back to the same instance.
// Instances never see each other's frames.
type VirtualTransport struct {
	cfg    TransportConfig
	ch     chan Frame
	once   sync.Once
	closed chan struct{}
}

// OpenVirtual creates a virtual transport. It cannot fail.
func OpenVirtual(cfg TransportConfig) *VirtualTransport {
	cfg.Kind = KindVirtual
	cfg.Port = 0
	return &VirtualTransport{
		cfg:    cfg,
		ch:     make(chan Frame, virtualQueueLen),
		closed: make(chan struct{}),
	}
}

func (v *VirtualTransport) Kind() Kind { return KindVirtual }

func (v *VirtualTransport) Info() string {
	return fmt.Sprintf("virtual channel %q (in-process loopback)", v.cfg.Channel)
}

// Send queues the frame for this instance's own Receive.
func (v *VirtualTransport) Send(frame Frame) error {
	if err := checkMTU(KindVirtual, v.cfg.FDEnabled, frame); err != nil {
		return err
	}
	select {
	case <-v.closed:
		return ioError(KindVirtual, "send", ErrClosed)
	default:
	}
	select {
	case v.ch <- frame.withTimestamp(time.Now()):
		return nil
	default:
		return ioError(KindVirtual, "send", ErrQueueFull)
	}
}

// Receive waits for the next looped-back frame.
func (v *VirtualTransport) Receive(timeout time.Duration) (Frame, bool, error) {
	select {
	case <-v.closed:
		return Frame{}, false, ioError(KindVirtual, "receive", ErrClosed)
	default:
	}
	if timeout <= 0 {
		select {
		case f := <-v.ch:
			return f, true, nil
		default:
			return Frame{}, false, nil
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-v.ch:
		return f, true, nil
	case <-t.C:
		return Frame{}, false, nil
	case <-v.closed:
		return Frame{}, false, ioError(KindVirtual, "receive", ErrClosed)
	}
}

// Close detaches the transport. Pending frames are discarded.
func (v *VirtualTransport) Close() error {
	v.once.Do(func() { close(v.closed) })
	return nil
}
