package util

import (
	"fmt"
	"strings"

	"github.com/notnil/canclient"
)

// FilterSpec collects the dump selection flags. Identifier selections
// (IDs, ranges, masks) are alternatives; Only narrows the result.
type FilterSpec struct {
	IDs    []string
	Ranges []string // "100-1FF"
	Masks  []string // "123:7FF", candump style
	Only   string   // standard, extended, fd, rtr or data

	// Exclude drops these identifiers after selection.
	Exclude []string
	// Len keeps only frames with exactly this many bytes when set.
	Len *int
}

// BuildFilter turns a FilterSpec into one FrameFilter. It returns nil when
// nothing is selected.
func BuildFilter(spec FilterSpec) (canclient.FrameFilter, error) {
	var match canclient.FrameFilter
	if len(spec.IDs) > 0 {
		ids, err := ParseIDs(spec.IDs)
		if err != nil {
			return nil, err
		}
		match = canclient.ByIDs(ids...)
	}
	for _, r := range spec.Ranges {
		lo, hi, ok := strings.Cut(r, "-")
		if !ok {
			return nil, fmt.Errorf("range %q must be <low>-<high>", r)
		}
		b, err := ParseIDs([]string{lo, hi})
		if err != nil {
			return nil, err
		}
		if b[0] > b[1] {
			return nil, fmt.Errorf("range %q is empty", r)
		}
		match = canclient.Or(match, canclient.ByRange(b[0], b[1]))
	}
	for _, m := range spec.Masks {
		id, mask, ok := strings.Cut(m, ":")
		if !ok {
			return nil, fmt.Errorf("mask %q must be <id>:<mask>", m)
		}
		v, err := ParseIDs([]string{id, mask})
		if err != nil {
			return nil, err
		}
		match = canclient.Or(match, canclient.ByMask(v[0], v[1]))
	}

	if spec.Only != "" {
		only, err := onlyFilter(spec.Only)
		if err != nil {
			return nil, err
		}
		match = canclient.And(match, only)
	}
	if len(spec.Exclude) > 0 {
		ids, err := ParseIDs(spec.Exclude)
		if err != nil {
			return nil, err
		}
		match = canclient.And(match, canclient.Not(canclient.ByIDs(ids...)))
	}
	if spec.Len != nil {
		match = canclient.And(match, canclient.LenExactly(*spec.Len))
	}
	return match, nil
}

func onlyFilter(name string) (canclient.FrameFilter, error) {
	switch strings.ToLower(name) {
	case "standard", "std":
		return canclient.StandardOnly(), nil
	case "extended", "ext":
		return canclient.ExtendedOnly(), nil
	case "fd":
		return canclient.FDOnly(), nil
	case "rtr", "remote":
		return canclient.RTROnly(), nil
	case "data":
		return canclient.DataOnly(), nil
	}
	return nil, fmt.Errorf("unknown frame class %q", name)
}
