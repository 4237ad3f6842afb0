package canclient

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frame is one CAN frame. Classical (2.0A/2.0B) and FD frames share the
// type; the FD flag decides the payload limit.
//
// A Frame is immutable once built: fields are only reachable through
// accessors and the payload lives in a fixed array, so copies never alias.
// Build frames with NewFrame or MustFrame.
type Frame struct {
	id   uint32
	ext  bool
	fd   bool
	rtr  bool
	n    uint8
	data [MaxFDLen]byte
	ts   time.Time
}

// Validation limits.
const (
	MaxClassicLen = 8
	MaxFDLen      = 64

	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

var (
	ErrInvalidID  = errors.New("canclient: invalid identifier")
	ErrInvalidLen = errors.New("canclient: invalid data length")
)

// FrameOption sets an optional frame attribute in NewFrame.
type FrameOption func(*Frame)

// Extended marks the identifier as 29-bit.
func Extended() FrameOption { return func(f *Frame) { f.ext = true } }

// FD marks the frame as CAN FD, allowing up to 64 payload bytes.
func FD() FrameOption { return func(f *Frame) { f.fd = true } }

// RTR marks the frame as a remote transmission request.
func RTR() FrameOption { return func(f *Frame) { f.rtr = true } }

// WithTimestamp attaches a receive timestamp.
func WithTimestamp(ts time.Time) FrameOption { return func(f *Frame) { f.ts = ts } }

// NewFrame builds and validates a frame.
func NewFrame(id uint32, data []byte, opts ...FrameOption) (Frame, error) {
	f := Frame{id: id}
	for _, opt := range opts {
		opt(&f)
	}
	if len(data) > f.mtu() {
		return Frame{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidLen, len(data), f.mtu())
	}
	f.n = uint8(len(data))
	copy(f.data[:], data)
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// MustFrame constructs a classical Frame and panics if invalid. IDs above
// 0x7FF select an extended identifier.
func MustFrame(id uint32, data []byte) Frame {
	var opts []FrameOption
	if id > maxStdID {
		opts = append(opts, Extended())
	}
	f, err := NewFrame(id, data, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if int(f.n) > f.mtu() {
		return ErrInvalidLen
	}
	if f.fd && f.rtr {
		return fmt.Errorf("%w: FD frames have no RTR", ErrInvalidLen)
	}
	if f.rtr && f.n != 0 {
		return fmt.Errorf("%w: remote frames carry no payload", ErrInvalidLen)
	}
	if f.ext {
		if f.id > maxExtID {
			return ErrInvalidID
		}
	} else if f.id > maxStdID {
		return ErrInvalidID
	}
	return nil
}

func (f Frame) mtu() int {
	if f.fd {
		return MaxFDLen
	}
	return MaxClassicLen
}

// ID returns the arbitration identifier.
func (f Frame) ID() uint32 { return f.id }

// Data returns a copy of the payload.
func (f Frame) Data() []byte {
	out := make([]byte, f.n)
	copy(out, f.data[:f.n])
	return out
}

// Len returns the payload length in bytes.
func (f Frame) Len() int { return int(f.n) }

func (f Frame) IsExtended() bool { return f.ext }
func (f Frame) IsFD() bool       { return f.fd }
func (f Frame) IsRTR() bool      { return f.rtr }

// Timestamp returns the receive time if the transport recorded one.
func (f Frame) Timestamp() (time.Time, bool) { return f.ts, !f.ts.IsZero() }

// withTimestamp returns a copy stamped with ts.
func (f Frame) withTimestamp(ts time.Time) Frame {
	f.ts = ts
	return f
}

// Equal reports whether two frames carry the same identifier, flags and
// payload. Timestamps are ignored.
func (f Frame) Equal(g Frame) bool {
	return f.id == g.id && f.ext == g.ext && f.fd == g.fd && f.rtr == g.rtr &&
		f.n == g.n && f.data == g.data
}

// String renders the frame in candump style, e.g. "123 [2] DE AD".
func (f Frame) String() string {
	var sb strings.Builder
	if f.ext {
		fmt.Fprintf(&sb, "%08X", f.id)
	} else {
		fmt.Fprintf(&sb, "%03X", f.id)
	}
	if f.fd {
		fmt.Fprintf(&sb, " [%02d]", f.n)
	} else {
		fmt.Fprintf(&sb, " [%d]", f.n)
	}
	if f.rtr {
		sb.WriteString(" RTR")
		return sb.String()
	}
	for _, b := range f.data[:f.n] {
		fmt.Fprintf(&sb, " %02X", b)
	}
	return sb.String()
}

// SocketCAN wire constants from <linux/can.h>.
const (
	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF

	canfdFDF = 0x04

	// ClassicFrameSize is sizeof(struct can_frame).
	ClassicFrameSize = 16
	// FDFrameSize is sizeof(struct canfd_frame).
	FDFrameSize = 72
)

// MarshalBinary encodes the frame in the Linux SocketCAN layout: struct
// can_frame (16 bytes) for classical frames, struct canfd_frame (72 bytes)
// for FD frames. Timestamps are not encoded.
//
// Layout (little-endian):
//
//	0..3  can_id (with EFF/RTR flags)
//	4     len
//	5     flags (FD only)
//	6..7  reserved
//	8..   data
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	id := f.id
	if f.ext {
		id |= canEffFlag
	}
	if f.rtr {
		id |= canRtrFlag
	}
	size := ClassicFrameSize
	if f.fd {
		size = FDFrameSize
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.n
	if f.fd {
		buf[5] = canfdFDF
	}
	copy(buf[8:], f.data[:size-8])
	return buf, nil
}

// UnmarshalBinary decodes a can_frame or canfd_frame, picked by length.
func (f *Frame) UnmarshalBinary(data []byte) error {
	var g Frame
	switch len(data) {
	case ClassicFrameSize:
	case FDFrameSize:
		g.fd = true
	default:
		return fmt.Errorf("canclient: need %d or %d bytes, got %d", ClassicFrameSize, FDFrameSize, len(data))
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	g.ext = id&canEffFlag != 0
	g.rtr = !g.fd && id&canRtrFlag != 0
	if g.ext {
		g.id = id & canEffMask
	} else {
		g.id = id & canStdMask
	}
	g.n = data[4]
	if int(g.n) > g.mtu() {
		return ErrInvalidLen
	}
	// len of a remote frame is the requested DLC, not a payload
	if g.rtr {
		g.n = 0
	}
	copy(g.data[:g.n], data[8:])
	if err := g.Validate(); err != nil {
		return err
	}
	*f = g
	return nil
}
