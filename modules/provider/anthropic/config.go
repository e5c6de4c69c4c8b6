package anthropic

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096
	defaultTimeout   = 30 * time.Second
	defaultAPIKeyEnv = "ANTHROPIC_API_KEY"

	// Every current Claude model accepts 200k input tokens unless the
	// long-context beta is enabled, which this module does not do.
	defaultContextWindow = 200_000
)

// Config is the YAML configuration of the provider.anthropic module.
type Config struct {
	APIKey        string        `yaml:"api_key"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	MaxTokens     int           `yaml:"max_tokens"`
	ContextWindow int           `yaml:"context_window"`
	Timeout       time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = defaultContextWindow
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if c.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("context_window must not be negative, got %d", c.ContextWindow))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %v", c.Timeout))
	}
	return errors.Join(errs...)
}

// apiKey returns the configured key, falling back to the api_key_env
// variable.
func (c *Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}
