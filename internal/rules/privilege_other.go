//go:build !unix

package rules

// Privileged always reports false on platforms without iptables.
func Privileged() bool {
	return false
}
