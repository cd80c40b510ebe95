// Package rules reads and mutates the kernel INPUT chain through the
// iptables/ip6tables command-line tools. Rule text is parsed into an ordered
// RuleSet with secondary indexes; the only supported mutation is rewriting a
// rule's terminal action.
package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultIPTablesPath is the default path to the IPv4 tool.
	DefaultIPTablesPath = "/sbin/iptables"

	// DefaultIP6TablesPath is the default path to the IPv6 tool.
	DefaultIP6TablesPath = "/sbin/ip6tables"

	// DefaultOpenAction is the terminal action of an open rule.
	DefaultOpenAction = "ACCEPT"

	// DefaultCloseAction is the terminal action of a closed rule.
	DefaultCloseAction = "LOG_DROP2"

	// DefaultCommandTimeout bounds a single tool invocation.
	DefaultCommandTimeout = 10 * time.Second
)

// Config holds the configuration for the rule store.
type Config struct {
	// IPTablesPath is the iptables binary.
	// Default: /sbin/iptables
	IPTablesPath string `yaml:"iptables_path"`

	// IP6TablesPath is the ip6tables binary.
	// Default: /sbin/ip6tables
	IP6TablesPath string `yaml:"ip6tables_path"`

	// OpenActionV4 and CloseActionV4 are the targets written by open/close on IPv4.
	// Default: ACCEPT / LOG_DROP2
	OpenActionV4  string `yaml:"open_action_v4"`
	CloseActionV4 string `yaml:"close_action_v4"`

	// OpenActionV6 and CloseActionV6 are the targets written by open/close on IPv6.
	// Default: ACCEPT / LOG_DROP2
	OpenActionV6  string `yaml:"open_action_v6"`
	CloseActionV6 string `yaml:"close_action_v6"`

	// CommandTimeout is the deadline for each tool invocation.
	// Default: 10s
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// DryRun logs replace commands instead of executing them even when the
	// process is privileged. Reads still hit the live firewall.
	DryRun bool `yaml:"dry_run"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.IPTablesPath == "" {
		c.IPTablesPath = DefaultIPTablesPath
	}
	if c.IP6TablesPath == "" {
		c.IP6TablesPath = DefaultIP6TablesPath
	}
	if c.OpenActionV4 == "" {
		c.OpenActionV4 = DefaultOpenAction
	}
	if c.CloseActionV4 == "" {
		c.CloseActionV4 = DefaultCloseAction
	}
	if c.OpenActionV6 == "" {
		c.OpenActionV6 = DefaultOpenAction
	}
	if c.CloseActionV6 == "" {
		c.CloseActionV6 = DefaultCloseAction
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if c.IPTablesPath == "" || c.IP6TablesPath == "" {
		return errors.New("rules: config: tool paths must not be empty")
	}
	for name, action := range map[string]string{
		"open_action_v4":  c.OpenActionV4,
		"close_action_v4": c.CloseActionV4,
		"open_action_v6":  c.OpenActionV6,
		"close_action_v6": c.CloseActionV6,
	} {
		if action == "" || strings.ContainsAny(action, " \t\r\n") {
			return fmt.Errorf("rules: config: invalid %s %q", name, action)
		}
	}
	if c.CommandTimeout <= 0 {
		return errors.New("rules: config: CommandTimeout must be positive")
	}
	return nil
}

// toolPath returns the binary for v.
func (c *Config) toolPath(v IPVersion) string {
	if v == IPv6 {
		return c.IP6TablesPath
	}
	return c.IPTablesPath
}

// action returns the terminal action written by op on v.
func (c *Config) action(v IPVersion, op Operation) string {
	switch {
	case v == IPv4 && op == OpOpen:
		return c.OpenActionV4
	case v == IPv4:
		return c.CloseActionV4
	case op == OpOpen:
		return c.OpenActionV6
	default:
		return c.CloseActionV6
	}
}
