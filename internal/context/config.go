// Package ctxengine implements token budgeting for conversation memory:
// estimation, usage accounting, truncation and running summaries.
package ctxengine

import (
	"errors"
	"fmt"
)

// BudgetConfig holds the thresholds of the context window.
type BudgetConfig struct {
	// MaxContextTokens is the total context window in tokens.
	MaxContextTokens int `yaml:"max_context_tokens"`

	// MaxOutputTokens caps the tokens reserved for the model's reply.
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// WarningThreshold and CriticalThreshold are usage ratios in (0, 1].
	WarningThreshold  float64 `yaml:"warning_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`

	// BufferTokens is the safety margin kept free when fitting messages.
	// Nil selects the default; an explicit zero disables the margin.
	BufferTokens *int `yaml:"buffer_tokens"`

	// SummarizationTokenThreshold triggers a summary once the estimated
	// history reaches it. Defaults to 75% of MaxContextTokens.
	SummarizationTokenThreshold int `yaml:"summarization_token_threshold"`
}

// Default budget values.
const (
	DefaultMaxContextTokens  = 200000
	DefaultMaxOutputTokens   = 8192
	DefaultWarningThreshold  = 0.8
	DefaultCriticalThreshold = 0.9
	DefaultBufferTokens      = 1000
)

// Tokens returns a pointer to n, for the optional fields of BudgetConfig.
func Tokens(n int) *int { return &n }

// Buffer returns the effective buffer, zero when unset.
func (cfg BudgetConfig) Buffer() int {
	if cfg.BufferTokens == nil {
		return 0
	}
	return *cfg.BufferTokens
}

// withDefaults returns a copy of cfg with unset fields replaced by the
// defaults. The output and buffer defaults shrink with small windows so
// that a window alone is always a valid configuration: at most a quarter
// of it is reserved for output and a tenth for the buffer.
func (cfg BudgetConfig) withDefaults() BudgetConfig {
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = DefaultMaxContextTokens
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = max(1, min(DefaultMaxOutputTokens, cfg.MaxContextTokens/4))
	}
	if cfg.WarningThreshold == 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.CriticalThreshold == 0 {
		cfg.CriticalThreshold = DefaultCriticalThreshold
	}
	if cfg.BufferTokens == nil {
		cfg.BufferTokens = Tokens(min(DefaultBufferTokens, cfg.MaxContextTokens/10))
	}
	if cfg.SummarizationTokenThreshold == 0 {
		cfg.SummarizationTokenThreshold = cfg.MaxContextTokens * 3 / 4
	}
	return cfg
}

// WithDefaults is the exported form of withDefaults for callers that need
// the effective configuration.
func (cfg BudgetConfig) WithDefaults() BudgetConfig {
	return cfg.withDefaults()
}

// Validate checks the configuration after defaults have been applied and
// returns every violation found.
func (cfg BudgetConfig) Validate() error {
	cfg = cfg.withDefaults()

	var errs []error
	if cfg.MaxContextTokens < 0 {
		errs = append(errs, fmt.Errorf("max_context_tokens must be positive, got %d", cfg.MaxContextTokens))
	}
	if cfg.MaxOutputTokens < 0 {
		errs = append(errs, fmt.Errorf("max_output_tokens must be positive, got %d", cfg.MaxOutputTokens))
	}
	if cfg.SummarizationTokenThreshold < 0 {
		errs = append(errs, fmt.Errorf("summarization_token_threshold must be positive, got %d", cfg.SummarizationTokenThreshold))
	}
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold > 1 {
		errs = append(errs, fmt.Errorf("warning_threshold must be in (0, 1], got %v", cfg.WarningThreshold))
	}
	if cfg.CriticalThreshold <= 0 || cfg.CriticalThreshold > 1 {
		errs = append(errs, fmt.Errorf("critical_threshold must be in (0, 1], got %v", cfg.CriticalThreshold))
	}
	if cfg.WarningThreshold > cfg.CriticalThreshold {
		errs = append(errs, errors.New("warning_threshold must not exceed critical_threshold"))
	}
	if cfg.Buffer() < 0 {
		errs = append(errs, fmt.Errorf("buffer_tokens must not be negative, got %d", cfg.Buffer()))
	}
	if cfg.MaxContextTokens > 0 && cfg.MaxOutputTokens+cfg.Buffer() >= cfg.MaxContextTokens {
		errs = append(errs, fmt.Errorf("max_output_tokens (%d) plus buffer_tokens (%d) must leave room in max_context_tokens (%d)",
			cfg.MaxOutputTokens, cfg.Buffer(), cfg.MaxContextTokens))
	}
	return errors.Join(errs...)
}
