// Package packaging installs ipgate as a systemd service on bare-metal hosts.
package packaging

import (
	"errors"
	"net"
	"path/filepath"

	"github.com/plexsphere/ipgate/internal/config"
	"github.com/plexsphere/ipgate/internal/server"
)

const (
	// DefaultBinaryPath is where the running executable is copied to.
	DefaultBinaryPath = "/usr/local/bin/ipgate"

	// DefaultServiceName is the systemd service name.
	DefaultServiceName = "ipgate"

	// DefaultUnitFilePath is the path of the systemd unit file.
	DefaultUnitFilePath = "/etc/systemd/system/ipgate.service"
)

// InstallConfig describes one installation. No file I/O happens until the
// Installer runs.
type InstallConfig struct {
	// BinaryPath is the installed executable.
	// Default: /usr/local/bin/ipgate
	BinaryPath string

	// ConfigPath is the config file passed to "ipgate serve". It is only
	// written when absent.
	// Default: /etc/ipgate/config.yaml
	ConfigPath string

	// UnitFilePath is the systemd unit file.
	// Default: /etc/systemd/system/ipgate.service
	UnitFilePath string

	// ServiceName is the systemd service name.
	// Default: ipgate
	ServiceName string

	// Listen is written into a newly created config file.
	// Default: localhost:60001
	Listen string

	// Enable enables the service to start on boot after installing.
	Enable bool
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigPath == "" {
		c.ConfigPath = config.DefaultPath
	}
	if c.UnitFilePath == "" {
		c.UnitFilePath = DefaultUnitFilePath
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Listen == "" {
		c.Listen = server.DefaultListen
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *InstallConfig) Validate() error {
	if !filepath.IsAbs(c.BinaryPath) {
		return errors.New("packaging: config: BinaryPath must be absolute")
	}
	if !filepath.IsAbs(c.ConfigPath) {
		return errors.New("packaging: config: ConfigPath must be absolute")
	}
	if !filepath.IsAbs(c.UnitFilePath) {
		return errors.New("packaging: config: UnitFilePath must be absolute")
	}
	if c.ServiceName == "" {
		return errors.New("packaging: config: ServiceName is required")
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.New("packaging: config: Listen must be host:port")
	}
	return nil
}
