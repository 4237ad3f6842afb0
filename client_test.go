package canclient

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_VirtualSendReceive(t *testing.T) {
	c, err := NewClient(TransportConfig{Kind: KindVirtual, Channel: "vcan0"}, WithCapabilities(Capabilities{}))
	require.NoError(t, err)
	defer c.Stop()

	assert.Equal(t, KindVirtual, c.Kind())
	assert.Contains(t, c.Info(), "vcan0")

	require.NoError(t, c.SendData(0x123, []byte{0xDE, 0xAD}))
	f, ok, err := c.Receive(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x123), f.ID())
	assert.Equal(t, []byte{0xDE, 0xAD}, f.Data())
	assert.False(t, f.IsExtended())
}

func TestNewClient_ConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  TransportConfig
	}{
		{"multicast without port", TransportConfig{Kind: KindMulticast, Channel: DefaultMulticastGroup}},
		{"multicast unicast address", TransportConfig{Kind: KindMulticast, Channel: "10.0.0.1", Port: 5000}},
		{"socket with port", TransportConfig{Kind: KindSocket, Channel: "can0", Port: 5000}},
		{"socket without channel", TransportConfig{Kind: KindSocket}},
		{"unknown kind", TransportConfig{Channel: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewClient(tc.cfg, WithCapabilities(Capabilities{}))
			require.Error(t, err)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrConfig)
			assert.NotErrorIs(t, err, ErrOpen)
		})
	}
}

func TestNewClient_SocketMissingInterface(t *testing.T) {
	_, err := NewClient(TransportConfig{Kind: KindSocket, Channel: "nosuchcan9"}, WithCapabilities(Capabilities{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestClient_StopIsIdempotent(t *testing.T) {
	op := &scriptedOpener{}
	c, err := NewClient(TransportConfig{Kind: KindVirtual}, WithOpener(op.open))
	require.NoError(t, err)

	c.Stop()
	c.Stop()
	c.Stop()

	require.Len(t, op.opened, 1)
	assert.Equal(t, int32(1), op.opened[0].closes.Load())

	err = c.Send(MustFrame(0x1, nil))
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, ErrClosed)
	_, ok, err := c.Receive(time.Millisecond)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_StopCloseErrorIsLogged(t *testing.T) {
	sink := &recordSink{}
	ft := newFakeTransport(KindSocket)
	ft.closeErr = errors.New("device busy")
	opener := func(TransportConfig, Capabilities, *slog.Logger) (Transport, error) { return ft, nil }

	c, err := NewClient(TransportConfig{Kind: KindSocket, Channel: "can0"},
		WithOpener(opener), WithLogger(slog.New(sink)))
	require.NoError(t, err)

	c.Stop()
	c.Stop()

	assert.Equal(t, int32(1), ft.closes.Load())
	assert.Equal(t, 1, sink.count("error shutting down can bus"))
	assert.True(t, sink.has(slog.LevelWarn, "error shutting down can bus"))
	assert.Zero(t, sink.count("can bus stopped"))
}

func TestClient_StopUnblocksReceive(t *testing.T) {
	c, err := NewClient(TransportConfig{Kind: KindVirtual}, WithCapabilities(Capabilities{}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.Receive(10 * time.Second)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrIO)
	case <-time.After(time.Second):
		t.Fatal("Stop did not unblock Receive")
	}
}

func TestClient_SendErrorsAreSurfaced(t *testing.T) {
	busOff := errors.New("bus off")
	opener := func(cfg TransportConfig, _ Capabilities, _ *slog.Logger) (Transport, error) {
		ft := newFakeTransport(cfg.Kind)
		ft.sendErr = busOff
		return ft, nil
	}
	c, err := NewClient(TransportConfig{Kind: KindVirtual}, WithOpener(opener))
	require.NoError(t, err)
	defer c.Stop()

	err = c.Send(MustFrame(0x1, nil))
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, busOff)
}

func TestClient_SendDataRejectsExtendedID(t *testing.T) {
	c, err := NewClient(TransportConfig{Kind: KindVirtual}, WithCapabilities(Capabilities{}))
	require.NoError(t, err)
	defer c.Stop()

	err = c.SendData(0x800, nil)
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestClient_ConcurrentSendReceive(t *testing.T) {
	c, err := NewClient(TransportConfig{Kind: KindVirtual}, WithCapabilities(Capabilities{}))
	require.NoError(t, err)
	defer c.Stop()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			assert.NoError(t, c.SendData(uint32(i), []byte{byte(i)}))
		}
	}()
	got := 0
	go func() {
		defer wg.Done()
		for got < n {
			_, ok, err := c.Receive(time.Second)
			if !assert.NoError(t, err) || !assert.True(t, ok) {
				return
			}
			got++
		}
	}()
	wg.Wait()
	assert.Equal(t, n, got)
}

func TestClient_Metrics(t *testing.T) {
	set := metrics.NewSet()
	c, err := NewClient(TransportConfig{Kind: KindVirtual}, WithCapabilities(Capabilities{}), WithMetricsSet(set))
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, c.SendData(0x10, nil))
	_, _, _ = c.Receive(time.Second)
	_, _, _ = c.Receive(time.Millisecond)

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	out := buf.String()
	assert.Contains(t, out, `canclient_frames_sent_total{transport="virtual"} 1`)
	assert.Contains(t, out, `canclient_frames_received_total{transport="virtual"} 1`)
	assert.Contains(t, out, `canclient_receive_timeouts_total{transport="virtual"} 1`)
	assert.Contains(t, out, `canclient_open_attempts_total{transport="virtual",result="ok"} 1`)
}

func TestClient_FrameLogging(t *testing.T) {
	sink := &recordSink{}
	c, err := NewClient(TransportConfig{Kind: KindVirtual},
		WithCapabilities(Capabilities{}),
		WithLogger(slog.New(sink)),
		WithFrameLogging(slog.LevelInfo, LogAll, nil),
	)
	require.NoError(t, err)

	require.NoError(t, c.SendData(0x42, []byte{1}))
	_, _, err = c.Receive(time.Second)
	require.NoError(t, err)
	c.Stop()

	assert.True(t, sink.has(slog.LevelInfo, "canclient send"))
	assert.True(t, sink.has(slog.LevelInfo, "canclient receive"))
	assert.True(t, sink.has(slog.LevelInfo, "can bus initialized"))
	assert.True(t, sink.has(slog.LevelInfo, "can bus stopped"))
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"socketcan":     KindSocket,
		"Socket":        KindSocket,
		"virtual":       KindVirtual,
		"udp_multicast": KindMulticast,
		"multicast":     KindMulticast,
		"kuksa":         KindBridge,
		"bridge":        KindBridge,
	}
	for name, want := range cases {
		got, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseKind("serial")
	assert.ErrorIs(t, err, ErrConfig)
}
