// Package config handles YAML configuration loading, environment variable
// expansion, module ordering and structural validation for chatmem.
package config

import "gopkg.in/yaml.v3"

// DefaultDataDir is used when the configuration does not set data_dir.
const DefaultDataDir = "data"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir is the root directory for persistent module data, such as
	// the SQLite database.
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of debug, info, warn or error. The --log-level flag
	// takes precedence.
	LogLevel string `yaml:"log_level,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "memory.engine").
	Modules map[string]yaml.Node `yaml:"modules"`
}

func (c *Config) defaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
}
