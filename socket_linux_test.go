//go:build linux

package canclient

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot list fds: %v", err)
	}
	return len(entries)
}

// lo is up but is not a CAN device, so opening fails after the socket call
// (bind ENODEV) or at it (no AF_CAN support).
func TestSocket_FailedOpenLeavesNoDescriptors(t *testing.T) {
	cfg := TransportConfig{Kind: KindSocket, Channel: "lo"}
	if _, err := Open(cfg, Capabilities{}, nil); err == nil {
		t.Skip("lo accepted a CAN socket")
	}

	before := openFDs(t)
	for i := 0; i < 50; i++ {
		tr, err := Open(cfg, Capabilities{}, nil)
		if tr != nil {
			_ = tr.Close()
		}
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOpen)
	}
	assert.Equal(t, before, openFDs(t))
}
