package canclient

import (
	"errors"
	"fmt"
)

// Error classes. Match them with errors.Is on any error returned by this
// package. A receive timeout is not an error and never matches.
var (
	// ErrConfig marks an invalid configuration or a frame the transport
	// cannot carry. Retrying does not help.
	ErrConfig = errors.New("canclient: invalid configuration")
	// ErrOpen marks a failure to acquire a transport. The selector recovers
	// from it by trying the next candidate.
	ErrOpen = errors.New("canclient: open failed")
	// ErrIO marks a send or receive failure on an open transport.
	ErrIO = errors.New("canclient: i/o failure")
)

var (
	// ErrClosed indicates the transport or client has been closed.
	ErrClosed = errors.New("canclient: closed")
	// ErrNoSuchInterface is returned when a named CAN interface does not exist.
	ErrNoSuchInterface = errors.New("canclient: no such interface")
	// ErrBridgeUnavailable is returned when no vendor bridge driver is present.
	ErrBridgeUnavailable = errors.New("canclient: bridge capability unavailable")
	// ErrChannelInUse is returned when another open bridge transport holds
	// the same driver channel.
	ErrChannelInUse = errors.New("canclient: channel in use")
	// ErrQueueFull is returned by the virtual transport when its loopback
	// queue has no room.
	ErrQueueFull = errors.New("canclient: queue full")
	// ErrUnsupported is returned when a transport is not available on this
	// platform.
	ErrUnsupported = errors.New("canclient: unsupported on this platform")
)

// TransportError describes a failed operation on a transport.
type TransportError struct {
	Op        string // "open", "send", "receive", "config"
	Transport Kind
	Err       error

	class error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("canclient: %s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches the error class (ErrConfig, ErrOpen, ErrIO).
func (e *TransportError) Is(target error) bool { return target == e.class }

func configError(k Kind, err error) error {
	return &TransportError{Op: "config", Transport: k, Err: err, class: ErrConfig}
}

func openError(k Kind, err error) error {
	var te *TransportError
	if errors.As(err, &te) && te.class == ErrConfig {
		return err
	}
	return &TransportError{Op: "open", Transport: k, Err: err, class: ErrOpen}
}

func ioError(k Kind, op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Transport: k, Err: err, class: ErrIO}
}

// checkMTU rejects frames the transport cannot carry.
func checkMTU(k Kind, fdEnabled bool, f Frame) error {
	if err := f.Validate(); err != nil {
		return configError(k, err)
	}
	if f.IsFD() && !fdEnabled {
		return configError(k, fmt.Errorf("%w: FD frame on a classic transport", ErrInvalidLen))
	}
	return nil
}
