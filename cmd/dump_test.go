package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/notnil/canclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintFrame(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	rtr, err := canclient.NewFrame(0x1ABCDEF0, nil, canclient.Extended(), canclient.RTR(), canclient.WithTimestamp(ts))
	require.NoError(t, err)
	fd, err := canclient.NewFrame(0x10, []byte{1, 2, 3}, canclient.FD(), canclient.WithTimestamp(ts))
	require.NoError(t, err)
	classic, err := canclient.NewFrame(0x123, []byte{0xDE, 0xAD}, canclient.WithTimestamp(ts))
	require.NoError(t, err)

	tests := []struct {
		frame canclient.Frame
		want  string
	}{
		{classic, "03:04:05.000006  vcan0  123  [2] DE AD\n"},
		{rtr, "03:04:05.000006  vcan0  1ABCDEF0  RTR\n"},
		{fd, "03:04:05.000006  vcan0  010  [03] 01 02 03\n"},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		printFrame(&buf, "vcan0", tc.frame)
		assert.Equal(t, tc.want, buf.String())
	}
}

func TestSendOverVirtual(t *testing.T) {
	RootCmd.SetArgs([]string{"send", "--interface", "virtual", "--log-output", "stderr", "123#01"})
	RootCmd.SetOut(&bytes.Buffer{})
	require.NoError(t, RootCmd.Execute())
}
