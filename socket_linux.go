//go:build linux

package canclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Interface MTUs reported by the kernel for CAN devices.
const (
	canMTU   = 16
	canfdMTU = 72
)

// socketSendTimeout bounds a write when the interface transmit queue is full.
const socketSendTimeout = time.Second

// socketTransport implements Transport over Linux SocketCAN.
//
// The raw socket is non-blocking and wrapped in an *os.File so reads and
// writes go through the runtime poller: deadlines bound Receive, and Close
// from another goroutine wakes a blocked Receive with os.ErrClosed.
type socketTransport struct {
	cfg     TransportConfig
	ifindex int
	file    *os.File
	buf     []byte
	once    sync.Once
	err     error
}

func openSocket(cfg TransportConfig, logger *slog.Logger) (Transport, error) {
	netIf, err := net.InterfaceByName(cfg.Channel)
	if err != nil {
		return nil, openError(KindSocket, fmt.Errorf("%w: %s", ErrNoSuchInterface, cfg.Channel))
	}
	if netIf.Flags&net.FlagUp == 0 {
		return nil, openError(KindSocket, fmt.Errorf("interface %s is down", cfg.Channel))
	}
	if cfg.FDEnabled && netIf.MTU != canfdMTU {
		return nil, openError(KindSocket, fmt.Errorf("interface %s has MTU %d, CAN FD needs %d", cfg.Channel, netIf.MTU, canfdMTU))
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, openError(KindSocket, fmt.Errorf("socket: %w", err))
	}
	if cfg.FDEnabled {
		if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
			_ = unix.Close(fd)
			return nil, openError(KindSocket, fmt.Errorf("enable fd frames: %w", err))
		}
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		_ = unix.Close(fd)
		return nil, openError(KindSocket, fmt.Errorf("bind %s: %w", cfg.Channel, err))
	}

	if cfg.Bitrate != 0 {
		logger.Debug("socketcan bitrate is configured out of band; value ignored",
			"channel", cfg.Channel,
			"bitrate", cfg.Bitrate,
		)
	}

	size := ClassicFrameSize
	if cfg.FDEnabled {
		size = FDFrameSize
	}
	return &socketTransport{
		cfg:     cfg,
		ifindex: netIf.Index,
		file:    os.NewFile(uintptr(fd), "socketcan:"+cfg.Channel),
		buf:     make([]byte, size),
	}, nil
}

func (s *socketTransport) Kind() Kind { return KindSocket }

func (s *socketTransport) Info() string {
	mode := "classic"
	if s.cfg.FDEnabled {
		mode = "fd"
	}
	return fmt.Sprintf("socketcan channel %q (ifindex %d, %s)", s.cfg.Channel, s.ifindex, mode)
}

// Send writes one frame in the can_frame or canfd_frame layout.
func (s *socketTransport) Send(frame Frame) error {
	if err := checkMTU(KindSocket, s.cfg.FDEnabled, frame); err != nil {
		return err
	}
	buf, err := frame.MarshalBinary()
	if err != nil {
		return configError(KindSocket, err)
	}
	if err := s.file.SetWriteDeadline(time.Now().Add(socketSendTimeout)); err != nil {
		return ioError(KindSocket, "send", mapFileErr(err))
	}
	n, err := s.file.Write(buf)
	if err != nil {
		return ioError(KindSocket, "send", mapFileErr(err))
	}
	if n != len(buf) {
		return ioError(KindSocket, "send", errors.New("short write"))
	}
	return nil
}

// Receive reads one frame, waiting at most timeout.
func (s *socketTransport) Receive(timeout time.Duration) (Frame, bool, error) {
	if err := s.file.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, false, ioError(KindSocket, "receive", mapFileErr(err))
	}
	n, err := s.file.Read(s.buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return Frame{}, false, nil
		}
		return Frame{}, false, ioError(KindSocket, "receive", mapFileErr(err))
	}
	var f Frame
	if err := f.UnmarshalBinary(s.buf[:n]); err != nil {
		return Frame{}, false, ioError(KindSocket, "receive", err)
	}
	return f.withTimestamp(time.Now()), true, nil
}

// Close closes the socket. Closing the file also closes the fd.
func (s *socketTransport) Close() error {
	s.once.Do(func() { s.err = s.file.Close() })
	return s.err
}

func mapFileErr(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
