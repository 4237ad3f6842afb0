//go:build linux

package canclient

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

// Link helpers for SocketCAN interfaces. Bitrate and bus-off recovery are
// not settable through the CAN socket itself, so they are applied here out
// of band. Changing link state requires CAP_NET_ADMIN.

func withIfreq(name string, fn func(fd int, ifr *unix.Ifreq) error) error {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return fmt.Errorf("%w: invalid interface name %q", ErrConfig, name)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return fn(fd, ifr)
}

func interfaceFlags(name string) (uint16, error) {
	var flags uint16
	err := withIfreq(name, func(fd int, ifr *unix.Ifreq) error {
		if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
			if errors.Is(err, unix.ENODEV) {
				return fmt.Errorf("%w: %s", ErrNoSuchInterface, name)
			}
			return err
		}
		flags = ifr.Uint16()
		return nil
	})
	return flags, err
}

func setInterfaceFlags(name string, flags uint16) error {
	return withIfreq(name, func(fd int, ifr *unix.Ifreq) error {
		ifr.SetUint16(flags)
		return requireNetAdmin(unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr))
	})
}

// IsLinkUp reports whether the interface has IFF_UP set.
func IsLinkUp(name string) (bool, error) {
	flags, err := interfaceFlags(name)
	if err != nil {
		return false, err
	}
	return flags&unix.IFF_UP != 0, nil
}

// SetLinkUp sets IFF_UP on the interface.
func SetLinkUp(name string) error {
	flags, err := interfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP != 0 {
		return nil
	}
	return setInterfaceFlags(name, flags|unix.IFF_UP)
}

// SetLinkDown clears IFF_UP on the interface.
func SetLinkDown(name string) error {
	flags, err := interfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP == 0 {
		return nil
	}
	return setInterfaceFlags(name, flags&^unix.IFF_UP)
}

func requireNetAdmin(err error) error {
	if errors.Is(err, unix.EPERM) {
		return fmt.Errorf("operation requires CAP_NET_ADMIN (or root): %w", err)
	}
	return err
}

// LinkOptions holds CAN link parameters applied with iproute2. Nil fields
// are left unchanged. Bitrate and RestartMs usually need the link down.
type LinkOptions struct {
	Bitrate     *uint32
	DataBitrate *uint32
	RestartMs   *uint32
	TxQueueLen  *int
	FD          *bool
}

// ipArgs builds the `ip link set` argument lists for opts.
func (o LinkOptions) ipArgs(name string) [][]string {
	var cmds [][]string
	if o.TxQueueLen != nil {
		cmds = append(cmds, []string{"link", "set", "dev", name, "txqueuelen", strconv.Itoa(*o.TxQueueLen)})
	}
	args := []string{"link", "set", "dev", name, "type", "can"}
	base := len(args)
	if o.Bitrate != nil {
		args = append(args, "bitrate", strconv.FormatUint(uint64(*o.Bitrate), 10))
	}
	if o.DataBitrate != nil {
		args = append(args, "dbitrate", strconv.FormatUint(uint64(*o.DataBitrate), 10))
	}
	if o.FD != nil {
		args = append(args, "fd", onOff(*o.FD))
	}
	if o.RestartMs != nil {
		args = append(args, "restart-ms", strconv.FormatUint(uint64(*o.RestartMs), 10))
	}
	if len(args) > base {
		cmds = append(cmds, args)
	}
	return cmds
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// ConfigureLink applies opts to a CAN interface by invoking `ip`.
func ConfigureLink(name string, opts LinkOptions) error {
	if _, err := unix.NewIfreq(name); err != nil {
		return fmt.Errorf("%w: invalid interface name %q", ErrConfig, name)
	}
	for _, args := range opts.ipArgs(name) {
		out, err := exec.Command("ip", args...).CombinedOutput()
		if err != nil {
			return requireNetAdmin(fmt.Errorf("ip %v: %w; output: %s", args[3:], err, out))
		}
	}
	return nil
}
