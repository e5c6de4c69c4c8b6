package openai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
)

// Config is the YAML configuration of the provider.openai module. BaseURL
// may point at any OpenAI-compatible endpoint.
type Config struct {
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	Organization  string        `yaml:"organization"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   *float64      `yaml:"temperature"`
	TopP          *float64      `yaml:"top_p"`
	Timeout       time.Duration `yaml:"timeout"`
	ContextWindow int           `yaml:"context_window"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %v", c.Timeout))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if c.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("context_window must not be negative, got %d", c.ContextWindow))
	}
	return errors.Join(errs...)
}

// contextWindow resolves the window size: explicit config first, then the
// longest known model prefix so dated snapshots ("gpt-4o-2024-08-06")
// resolve like their family. Unknown models return 0.
func (c *Config) contextWindow() int {
	if c.ContextWindow > 0 {
		return c.ContextWindow
	}
	best, size := "", 0
	for prefix, n := range knownContextWindows {
		if strings.HasPrefix(c.Model, prefix) && len(prefix) > len(best) {
			best, size = prefix, n
		}
	}
	return size
}

var knownContextWindows = map[string]int{
	"gpt-3.5-turbo": 16385,
	"gpt-4":         8192,
	"gpt-4-turbo":   128000,
	"gpt-4o":        128000,
	"gpt-4.1":       1047576,
	"gpt-5":         400000,
	"o1":            200000,
	"o3":            200000,
	"o4-mini":       200000,
}
