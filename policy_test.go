package canclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicy(t *testing.T) {
	const doc = `
posix:
  - {kind: socketcan, channel: can1, bitrate: 250000}
  - {kind: udp_multicast, channel: 239.0.0.7, port: 50007, fd: true}
windows:
  - {kind: kuksa, channel: PCAN_USBBUS1}
any:
  - {kind: virtual, channel: sim}
`
	pol, err := LoadPolicy(strings.NewReader(doc))
	require.NoError(t, err)

	posix := pol.Candidates(PosixLike)
	require.Len(t, posix, 3)
	assert.Equal(t, TransportConfig{Kind: KindSocket, Channel: "can1", Bitrate: 250000}, posix[0])
	assert.Equal(t, TransportConfig{Kind: KindMulticast, Channel: "239.0.0.7", Port: 50007, FDEnabled: true}, posix[1])
	assert.Equal(t, KindVirtual, posix[2].Kind)

	assert.Equal(t, []Kind{KindBridge, KindVirtual}, kinds(pol.Candidates(WindowsLike)))
}

func TestLoadPolicy_Errors(t *testing.T) {
	cases := map[string]string{
		"missing port":  "posix:\n  - {kind: multicast, channel: 239.0.0.1}\n",
		"unknown kind":  "posix:\n  - {kind: serial, channel: com1}\n",
		"unknown field": "posix:\n  - {kind: virtual, speed: 1}\n",
	}
	for name, doc := range cases {
		_, err := LoadPolicy(strings.NewReader(doc))
		assert.ErrorIs(t, err, ErrConfig, name)
	}
}

func TestLoadPolicy_Empty(t *testing.T) {
	pol, err := LoadPolicy(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, pol)
}
