package canclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeRegistry(t *testing.T) {
	a := &stubBridge{name: "test-a"}
	b := &stubBridge{name: "test-b"}
	RegisterBridge(b)
	RegisterBridge(a)
	t.Cleanup(func() {
		UnregisterBridge("test-a")
		UnregisterBridge("test-b")
	})

	assert.Subset(t, Bridges(), []string{"test-a", "test-b"})
	assert.Equal(t, b, DetectCapabilities("test-b").Bridge)
	assert.False(t, DetectCapabilities("missing").BridgeAvailable())
	assert.True(t, DetectCapabilities("").BridgeAvailable())

	assert.Panics(t, func() { RegisterBridge(&stubBridge{}) })
}

func TestBridgeTransport_SendReceiveStop(t *testing.T) {
	drv := &stubBridge{name: "stub"}
	c, err := NewBridgeClient("PCAN_USBBUS1", 500000, WithCapabilities(Capabilities{Bridge: drv}))
	require.NoError(t, err)

	assert.Equal(t, KindBridge, c.Kind())
	assert.Contains(t, c.Info(), "stub")

	require.NoError(t, c.SendData(0x100, []byte{1, 2}))
	f, ok, err := c.Receive(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, f.Data())

	c.Stop()
	c.Stop()
	assert.Equal(t, int32(1), drv.stops.Load())
}

func TestBridgeTransport_Unavailable(t *testing.T) {
	_, err := Open(TransportConfig{Kind: KindBridge, Channel: "can0"}, Capabilities{}, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
}

func TestBridgeTransport_DriverOpenFailure(t *testing.T) {
	noDevice := errors.New("no device")
	drv := &stubBridge{name: "stub", openErr: noDevice}
	_, err := Open(TransportConfig{Kind: KindBridge, Channel: "can0"}, Capabilities{Bridge: drv}, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.ErrorIs(t, err, noDevice)
}

func TestSelector_BridgeCapabilityIsUsed(t *testing.T) {
	drv := &stubBridge{name: "stub"}
	c := NewSelector(DefaultPolicy("nosuchcan9", 500000, false),
		WithCapabilities(Capabilities{Bridge: drv}), WithPlatform(PosixLike)).Select()
	defer c.Stop()
	assert.Equal(t, KindBridge, c.Kind())
}

func TestBridgeTransport_ChannelHasSingleOwner(t *testing.T) {
	drv := &stubBridge{name: "stub"}
	caps := Capabilities{Bridge: drv}
	cfg := TransportConfig{Kind: KindBridge, Channel: "PCAN_USBBUS2"}

	first, err := Open(cfg, caps, nil)
	require.NoError(t, err)

	_, err = Open(cfg, caps, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.ErrorIs(t, err, ErrChannelInUse)

	other, err := Open(TransportConfig{Kind: KindBridge, Channel: "PCAN_USBBUS3"}, caps, nil)
	require.NoError(t, err)
	require.NoError(t, other.Close())

	require.NoError(t, first.Close())
	again, err := Open(cfg, caps, nil)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestBridgeTransport_FailedOpenReleasesChannel(t *testing.T) {
	cfg := TransportConfig{Kind: KindBridge, Channel: "PCAN_USBBUS4"}
	_, err := Open(cfg, Capabilities{Bridge: &stubBridge{name: "stub", openErr: errors.New("no device")}}, nil)
	require.Error(t, err)

	tr, err := Open(cfg, Capabilities{Bridge: &stubBridge{name: "stub"}}, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Close())
}

func TestNewBridgeClient_DefaultChannel(t *testing.T) {
	c, err := NewBridgeClient("", 250000, WithCapabilities(Capabilities{Bridge: &stubBridge{name: "stub"}}))
	require.NoError(t, err)
	defer c.Stop()
	assert.Equal(t, DefaultBridgeChannel, c.Config().Channel)
	assert.Equal(t, uint32(250000), c.Config().Bitrate)
}
