package server

import (
	"errors"
	"net"
	"time"
)

// DefaultListen is the default TCP listen address.
const DefaultListen = "localhost:60001"

// DefaultReadBufferSize is the size of the single read per connection.
const DefaultReadBufferSize = 1024

// DefaultReadTimeout is the default deadline for reading a request.
const DefaultReadTimeout = 30 * time.Second

// DefaultShutdownTimeout is the default graceful shutdown timeout.
const DefaultShutdownTimeout = 5 * time.Second

// Config holds the configuration for the connection server.
type Config struct {
	// Listen is the TCP listen address.
	// Default: localhost:60001
	Listen string `yaml:"listen"`

	// ListenInterface binds the listener to the first address of the named
	// network interface, keeping the port of Listen. Linux only.
	ListenInterface string `yaml:"listen_interface"`

	// ReadBufferSize is the number of bytes read from each connection. A
	// request is read with a single call; anything beyond this size is
	// dropped and usually surfaces as a malformed request.
	// Default: 1024
	ReadBufferSize int `yaml:"read_buffer_size"`

	// ReadTimeout bounds the wait for a request after accept.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ShutdownTimeout is the maximum time to wait for in-flight connections.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MetricsListen enables a Prometheus /metrics listener on this address.
	MetricsListen string `yaml:"metrics_listen"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.New("server: config: Listen must be host:port")
	}
	if c.ReadBufferSize <= 0 {
		return errors.New("server: config: ReadBufferSize must be positive")
	}
	if c.ReadTimeout < 0 {
		return errors.New("server: config: ReadTimeout must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("server: config: ShutdownTimeout must be positive")
	}
	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			return errors.New("server: config: MetricsListen must be host:port")
		}
	}
	return nil
}
