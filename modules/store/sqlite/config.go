package sqlite

import (
	"errors"
	"fmt"
)

const (
	defaultBusyTimeout  = 5000
	defaultRestoreLimit = 50
	defaultDBFile       = "chatmem.db"
)

// Config holds the SQLite store module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/chatmem.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// RestoreLimit caps the messages loaded when a session is rehydrated.
	RestoreLimit int `yaml:"restore_limit"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.RestoreLimit == 0 {
		c.RestoreLimit = defaultRestoreLimit
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	var errs []error
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout))
	}
	if c.RestoreLimit < 0 {
		errs = append(errs, fmt.Errorf("sqlite: restore_limit must be non-negative, got %d", c.RestoreLimit))
	}
	return errors.Join(errs...)
}
