//go:build !linux

package canclient

import (
	"fmt"
	"log/slog"
	"runtime"
)

// SocketCAN exists only on Linux.
func openSocket(cfg TransportConfig, _ *slog.Logger) (Transport, error) {
	return nil, openError(KindSocket, fmt.Errorf("%w: socketcan on %s", ErrUnsupported, runtime.GOOS))
}
