package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/flemzord/chatmem/internal/config"
	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/redact"
)

// loadApp reads, validates and provisions the configuration at path. The
// returned app is ready to Start. flagLevel overrides the configured
// log level when set.
func loadApp(path, flagLevel string, logOut io.Writer) (*core.App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if _, ok := cfg.Modules[memory.EngineService]; !ok {
		return nil, fmt.Errorf("config: module %q must be configured", memory.EngineService)
	}

	levelName := cfg.LogLevel
	if flagLevel != "" {
		levelName = flagLevel
	}
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, err
	}
	redactor := redact.New()
	logger := slog.New(redact.NewHandler(
		slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}),
		redactor,
	))

	dataDir := cfg.DataDir
	if !filepath.IsAbs(dataDir) {
		// Relative data directories are resolved against the config file.
		dataDir = filepath.Join(filepath.Dir(path), dataDir)
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(redact.Service, redactor)
	app := core.NewApp(appCtx)
	if err := app.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, err
	}
	return app, nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", name)
	}
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $CHATMEM_CONFIG, $XDG_CONFIG_HOME/chatmem/chatmem.yaml
// (or ~/.config/chatmem/chatmem.yaml), then ./chatmem.yaml.
func resolveConfigPath() (string, error) {
	if path, ok := os.LookupEnv("CHATMEM_CONFIG"); ok && path != "" {
		return path, nil
	}

	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "chatmem", "chatmem.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "chatmem", "chatmem.yaml"))
	}
	candidates = append(candidates, "chatmem.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
