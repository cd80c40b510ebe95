package rules

import "fmt"

// IPVersion selects the IPv4 or IPv6 INPUT chain.
type IPVersion int

const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

// Versions lists the supported IP versions in response order.
var Versions = []IPVersion{IPv4, IPv6}

// String returns the path/JSON key for v, "ipv4" or "ipv6".
func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("ipv%d", int(v))
	}
}

// Valid reports whether v is a supported version.
func (v IPVersion) Valid() bool {
	return v == IPv4 || v == IPv6
}

// ParseIPVersion maps "ipv4"/"ipv6" to an IPVersion.
func ParseIPVersion(s string) (IPVersion, error) {
	switch s {
	case "ipv4":
		return IPv4, nil
	case "ipv6":
		return IPv6, nil
	default:
		return 0, fmt.Errorf("rules: unknown IP version %q", s)
	}
}

// VersionFromSegment derives the version from the last character of a path
// segment such as "ipv4".
func VersionFromSegment(seg string) (IPVersion, error) {
	if seg == "" {
		return 0, fmt.Errorf("rules: empty IP version segment")
	}
	switch seg[len(seg)-1] {
	case '4':
		return IPv4, nil
	case '6':
		return IPv6, nil
	default:
		return 0, fmt.Errorf("rules: unknown IP version %q", seg)
	}
}

// Operation is a rule mutation.
type Operation string

const (
	OpOpen  Operation = "open"
	OpClose Operation = "close"
)

// ParseOperation maps "open"/"close" to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpOpen, OpClose:
		return Operation(s), nil
	default:
		return "", fmt.Errorf("rules: unknown operation %q", s)
	}
}
