package canclient

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// policyFile is the YAML form of a Policy:
//
//	posix:
//	  - {kind: socket, channel: can0, bitrate: 500000}
//	  - {kind: virtual, channel: can0}
//	windows:
//	  - {kind: multicast, channel: 239.0.0.1, port: 50000}
//	any:
//	  - {kind: virtual}
//
// Entries keep file order: posix, then windows, then any.
type policyFile struct {
	Posix   []TransportConfig `yaml:"posix"`
	Windows []TransportConfig `yaml:"windows"`
	Any     []TransportConfig `yaml:"any"`
}

// LoadPolicy decodes a YAML policy and validates every entry.
func LoadPolicy(r io.Reader) (Policy, error) {
	var pf policyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: policy: %v", ErrConfig, err)
	}
	var pol Policy
	add := func(when PlatformPredicate, cfgs []TransportConfig) error {
		for i, c := range cfgs {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("policy entry %d (%s): %w", i, c.Kind, err)
			}
			pol = append(pol, PolicyEntry{When: when, Config: c})
		}
		return nil
	}
	if err := add(OnPlatform(PosixLike), pf.Posix); err != nil {
		return nil, err
	}
	if err := add(OnPlatform(WindowsLike), pf.Windows); err != nil {
		return nil, err
	}
	if err := add(AnyPlatform(), pf.Any); err != nil {
		return nil, err
	}
	return pol, nil
}

// LoadPolicyFile reads a policy from path.
func LoadPolicyFile(path string) (Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPolicy(f)
}
