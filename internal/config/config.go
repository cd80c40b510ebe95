// Package config loads the ipgate configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/ipgate/internal/router"
	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/server"
)

const (
	// DefaultPath is the configuration file read when --config is not given.
	DefaultPath = "/etc/ipgate/config.yaml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config is the top-level configuration. It aggregates the subsystem
// configurations and is populated from YAML via ParseConfig.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	Server   server.Config `yaml:"server"`
	Firewall rules.Config  `yaml:"firewall"`
	API      router.Config `yaml:"api"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Server.ApplyDefaults()
	c.Firewall.ApplyDefaults()
	c.API.ApplyDefaults()
}

// Validate checks that values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q (must be debug, info, warn or error)", c.LogLevel)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Firewall.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	return nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ParseConfig reads a YAML configuration file. It applies defaults and
// validates the result. Unknown keys are rejected.
func ParseConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is ParseConfig, except that a missing file at DefaultPath yields the
// default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg, err := ParseConfig(path)
	if err != nil && path == DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}
