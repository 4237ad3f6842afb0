package util

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/canclient"
)

// ParseFrame parses a frame in cansend syntax:
//
//	<id>#<data>        classic data frame, e.g. 123#DEADBEEF or 123#DE.AD.BE.EF
//	<id>#R             remote transmission request
//	<id>##<flags><data> CAN FD frame; flags is one hex nibble
//
// Three hex digits select a standard ID, eight an extended one.
func ParseFrame(s string) (canclient.Frame, error) {
	idPart, rest, ok := strings.Cut(strings.TrimSpace(s), "#")
	if !ok {
		return canclient.Frame{}, fmt.Errorf("missing '#' in %q", s)
	}

	var opts []canclient.FrameOption
	switch len(idPart) {
	case 3:
	case 8:
		opts = append(opts, canclient.Extended())
	default:
		return canclient.Frame{}, fmt.Errorf("id %q must have 3 (standard) or 8 (extended) hex digits", idPart)
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return canclient.Frame{}, fmt.Errorf("invalid id %q: %w", idPart, err)
	}

	switch {
	case strings.HasPrefix(rest, "#"):
		rest = rest[1:]
		if rest == "" {
			return canclient.Frame{}, fmt.Errorf("FD frame %q is missing the flags nibble", s)
		}
		if _, err := strconv.ParseUint(rest[:1], 16, 8); err != nil {
			return canclient.Frame{}, fmt.Errorf("invalid FD flags %q", rest[:1])
		}
		rest = rest[1:]
		opts = append(opts, canclient.FD())
	case rest == "R":
		opts = append(opts, canclient.RTR())
		return canclient.NewFrame(uint32(id), nil, opts...)
	}

	data, err := hex.DecodeString(strings.ReplaceAll(rest, ".", ""))
	if err != nil {
		return canclient.Frame{}, fmt.Errorf("invalid data %q: %w", rest, err)
	}
	return canclient.NewFrame(uint32(id), data, opts...)
}

// ParseIDs parses a list of hex identifiers as accepted by --id.
func ParseIDs(values []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(values))
	for _, v := range values {
		v = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "0x")
		id, err := strconv.ParseUint(v, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", v, err)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}
