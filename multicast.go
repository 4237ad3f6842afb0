package canclient

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// maxDatagram bounds one encoded frame; an FD frame encodes well below it.
const maxDatagram = 512

// datagram is the wire record of one frame on the multicast bus.
type datagram struct {
	Sender   []byte `cbor:"1,keyasint"`
	ID       uint32 `cbor:"2,keyasint"`
	Extended bool   `cbor:"3,keyasint,omitempty"`
	FD       bool   `cbor:"4,keyasint,omitempty"`
	RTR      bool   `cbor:"5,keyasint,omitempty"`
	Data     []byte `cbor:"6,keyasint,omitempty"`
}

var (
	datagramEnc cbor.EncMode
	datagramDec cbor.DecMode
)

func init() {
	var err error
	if datagramEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if datagramDec, err = (cbor.DecOptions{MaxArrayElements: 16, MaxMapPairs: 16}).DecMode(); err != nil {
		panic(err)
	}
}

func encodeDatagram(sender uuid.UUID, f Frame) ([]byte, error) {
	return datagramEnc.Marshal(datagram{
		Sender:   sender[:],
		ID:       f.ID(),
		Extended: f.IsExtended(),
		FD:       f.IsFD(),
		RTR:      f.IsRTR(),
		Data:     f.Data(),
	})
}

func decodeDatagram(b []byte) (datagram, Frame, error) {
	var d datagram
	if err := datagramDec.Unmarshal(b, &d); err != nil {
		return d, Frame{}, err
	}
	var opts []FrameOption
	if d.Extended {
		opts = append(opts, Extended())
	}
	if d.FD {
		opts = append(opts, FD())
	}
	if d.RTR {
		opts = append(opts, RTR())
	}
	f, err := NewFrame(d.ID, d.Data, opts...)
	return d, f, err
}

// multicastTransport simulates a shared CAN bus over UDP multicast. Every
// instance joined to the same group and port sees the frames of the others;
// an instance never receives its own frames.
type multicastTransport struct {
	cfg    TransportConfig
	conn   *net.UDPConn
	group  *net.UDPAddr
	sender uuid.UUID
	logger *slog.Logger
	buf    []byte
	once   sync.Once
	err    error
}

func openMulticast(cfg TransportConfig, logger *slog.Logger) (Transport, error) {
	ip := net.ParseIP(cfg.Channel)
	network := "udp4"
	if ip.To4() == nil {
		network = "udp6"
	}
	group := &net.UDPAddr{IP: ip, Port: int(cfg.Port)}

	conn, err := net.ListenMulticastUDP(network, nil, group)
	if err != nil {
		return nil, openError(KindMulticast, fmt.Errorf("join %s: %w", group, err))
	}
	// ListenMulticastUDP disables loopback; processes on one host share the
	// bus only with it enabled. Keep datagrams on the local link.
	if network == "udp4" {
		p := ipv4.NewPacketConn(conn)
		err = p.SetMulticastLoopback(true)
		if err == nil {
			err = p.SetMulticastTTL(1)
		}
	} else {
		p := ipv6.NewPacketConn(conn)
		err = p.SetMulticastLoopback(true)
		if err == nil {
			err = p.SetMulticastHopLimit(1)
		}
	}
	if err != nil {
		_ = conn.Close()
		return nil, openError(KindMulticast, fmt.Errorf("configure %s: %w", group, err))
	}
	if cfg.Bitrate != 0 {
		logger.Debug("multicast bus has no bitrate; value ignored", "group", group.String(), "bitrate", cfg.Bitrate)
	}

	return &multicastTransport{
		cfg:    cfg,
		conn:   conn,
		group:  group,
		sender: uuid.New(),
		logger: logger,
		buf:    make([]byte, maxDatagram),
	}, nil
}

func (m *multicastTransport) Kind() Kind { return KindMulticast }

func (m *multicastTransport) Info() string {
	return fmt.Sprintf("udp multicast group %s (sender %s)", m.group, m.sender)
}

func (m *multicastTransport) Send(frame Frame) error {
	if err := checkMTU(KindMulticast, m.cfg.FDEnabled, frame); err != nil {
		return err
	}
	b, err := encodeDatagram(m.sender, frame)
	if err != nil {
		return ioError(KindMulticast, "send", err)
	}
	if _, err := m.conn.WriteToUDP(b, m.group); err != nil {
		return ioError(KindMulticast, "send", mapNetErr(err))
	}
	return nil
}

// Receive returns the next frame from another sender. Datagrams that are
// not frames, our own frames and FD frames on a classic transport are
// skipped without resetting the deadline.
func (m *multicastTransport) Receive(timeout time.Duration) (Frame, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := m.conn.SetReadDeadline(deadline); err != nil {
			return Frame{}, false, ioError(KindMulticast, "receive", mapNetErr(err))
		}
		n, from, err := m.conn.ReadFromUDP(m.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return Frame{}, false, nil
			}
			return Frame{}, false, ioError(KindMulticast, "receive", mapNetErr(err))
		}
		d, f, err := decodeDatagram(m.buf[:n])
		if err != nil {
			m.logger.Debug("dropping malformed datagram", "from", from.String(), "error", err)
			continue
		}
		if bytes.Equal(d.Sender, m.sender[:]) {
			continue
		}
		if f.IsFD() && !m.cfg.FDEnabled {
			m.logger.Debug("dropping fd frame on classic transport", "id", f.ID(), "from", from.String())
			continue
		}
		return f.withTimestamp(time.Now()), true, nil
	}
}

func (m *multicastTransport) Close() error {
	m.once.Do(func() { m.err = m.conn.Close() })
	return m.err
}

func mapNetErr(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
