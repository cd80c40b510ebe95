//go:build !linux

package server

import (
	"context"
	"errors"
	"net"
)

func listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// interfaceAddr is only supported on Linux.
func interfaceAddr(name string) (net.IP, error) {
	return nil, errors.New("server: listen_interface is not supported on this platform")
}
