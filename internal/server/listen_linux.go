//go:build linux

package server

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// listen opens the TCP listener with SO_REUSEADDR so a restarted server can
// rebind while old connections sit in TIME_WAIT.
func listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	return lc.Listen(ctx, "tcp", addr)
}

func reuseAddr(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}

// interfaceAddr returns the address to bind on the named interface. IPv4
// addresses are preferred; IPv6 link-local addresses are never used.
func interfaceAddr(name string) (net.IP, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("server: lookup interface %q: %w", name, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("server: list addresses of %q: %w", name, err)
	}
	for _, a := range addrs {
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	for _, a := range addrs {
		if !a.IP.IsLinkLocalUnicast() {
			return a.IP, nil
		}
	}
	return nil, fmt.Errorf("server: interface %q has no usable address", name)
}
