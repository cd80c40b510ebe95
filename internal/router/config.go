package router

import (
	"errors"
	"strings"
)

const (
	// DefaultAPIVersion is the first path segment of every resource.
	DefaultAPIVersion = "v1"

	// DefaultCollection is the second path segment of every resource.
	DefaultCollection = "rules"

	// DefaultScheme is the scheme of generated action links.
	DefaultScheme = "http"

	// DefaultHost is used in action links when a request carries no Host header.
	DefaultHost = "localhost:60001"
)

// Config holds the configuration for the request router.
type Config struct {
	// APIVersion is the supported version tag.
	// Default: v1
	APIVersion string `yaml:"api_version"`

	// Collection is the resource collection name.
	// Default: rules
	Collection string `yaml:"collection"`

	// Scheme is used when building xopen/xclose links.
	// Default: http
	Scheme string `yaml:"scheme"`

	// DefaultHost replaces a missing Host header in action links.
	// Default: localhost:60001
	DefaultHost string `yaml:"default_host"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	if c.DefaultHost == "" {
		c.DefaultHost = DefaultHost
	}
}

// Validate checks that the configuration is valid.
// Call ApplyDefaults before Validate.
func (c *Config) Validate() error {
	if c.APIVersion == "" || strings.Contains(c.APIVersion, "/") {
		return errors.New("router: config: APIVersion must be a single path segment")
	}
	if c.Collection == "" || strings.Contains(c.Collection, "/") {
		return errors.New("router: config: Collection must be a single path segment")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return errors.New("router: config: Scheme must be http or https")
	}
	if c.DefaultHost == "" {
		return errors.New("router: config: DefaultHost is required")
	}
	return nil
}
