//go:build !linux

package canclient

import "fmt"

// LinkOptions holds CAN link parameters. Only Linux supports them.
type LinkOptions struct {
	Bitrate     *uint32
	DataBitrate *uint32
	RestartMs   *uint32
	TxQueueLen  *int
	FD          *bool
}

func IsLinkUp(name string) (bool, error) { return false, fmt.Errorf("%w: link state", ErrUnsupported) }
func SetLinkUp(name string) error        { return fmt.Errorf("%w: link state", ErrUnsupported) }
func SetLinkDown(name string) error      { return fmt.Errorf("%w: link state", ErrUnsupported) }

func ConfigureLink(name string, opts LinkOptions) error {
	return fmt.Errorf("%w: link configuration", ErrUnsupported)
}
