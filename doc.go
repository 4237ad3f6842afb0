// Package canclient provides one CAN client over several transports and
// picks a working transport for the host it runs on.
//
// It includes:
//   - An immutable Frame type for classical and FD frames with SocketCAN
//     binary marshaling
//   - The Transport interface with four variants: Linux SocketCAN, an
//     in-process virtual loopback, a UDP multicast bus simulation and vendor
//     bridges plugged in through RegisterBridge
//   - Client, which owns one Transport and passes Send and Receive through
//   - Selector, which walks an ordered policy of candidates and falls back to
//     the virtual transport when none opens
//
// Explicit construction never falls back:
//
//	c, err := canclient.NewClient(canclient.TransportConfig{Kind: canclient.KindSocket, Channel: "can0"})
//
// Default construction always yields a Client:
//
//	c := canclient.NewDefaultClient("vcan0", 500000, false)
//	defer c.Stop()
//
// Receive returns ok=false with a nil error on timeout. Send and Receive
// errors match ErrIO, construction errors match ErrOpen or ErrConfig.
package canclient
