package config

import (
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/chatmem/internal/core"
)

var logLevels = []string{"", "debug", "info", "warn", "error"}

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry and that each module
// section is a mapping. Module-specific settings are validated by the
// modules themselves.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if !slices.Contains(logLevels, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("config: invalid log_level %q", cfg.LogLevel))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		node := cfg.Modules[id]
		if node.Kind != 0 && node.Kind != yaml.MappingNode && !isNull(&node) {
			errs = append(errs, fmt.Errorf("config: module %q: configuration must be a mapping", id))
		}
	}

	return errors.Join(errs...)
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
