//go:build unix

package rules

import "golang.org/x/sys/unix"

// Privileged reports whether the process may modify the live firewall.
func Privileged() bool {
	return unix.Geteuid() == 0
}
