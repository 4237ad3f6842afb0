package util

import (
	"strings"
	"testing"

	"github.com/notnil/canclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		in   string
		want canclient.Frame
	}{
		{"123#DEADBEEF", canclient.MustFrame(0x123, []byte{0xDE, 0xAD, 0xBE, 0xEF})},
		{"123#de.ad", canclient.MustFrame(0x123, []byte{0xDE, 0xAD})},
		{"7FF#", canclient.MustFrame(0x7FF, nil)},
		{"00000123#11", mustFrame(t, 0x123, []byte{0x11}, canclient.Extended())},
		{"123#R", mustFrame(t, 0x123, nil, canclient.RTR())},
		{"123##1" + "00112233445566778899", mustFrame(t, 0x123,
			[]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99}, canclient.FD())},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFrame(tc.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestParseFrameInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"123",
		"12#00",
		"800#00",
		"XYZ#00",
		"123#0",
		"123#001122334455667788",
		"123##",
		"123##G00",
		"20000000#00",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseFrame(in)
			assert.Error(t, err)
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs([]string{"123", "0x7ff", " 1ABCDEF0 "})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x123, 0x7FF, 0x1ABCDEF0}, ids)

	_, err = ParseIDs([]string{"nothex"})
	assert.Error(t, err)
}

func TestWrapString(t *testing.T) {
	out := WrapString("a short line that is certainly going to be wrapped because it is longer than fifty characters")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
}

func mustFrame(t *testing.T, id uint32, data []byte, opts ...canclient.FrameOption) canclient.Frame {
	t.Helper()
	f, err := canclient.NewFrame(id, data, opts...)
	require.NoError(t, err)
	return f
}
