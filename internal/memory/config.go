package memory

import (
	"errors"
	"fmt"

	ctxengine "github.com/flemzord/chatmem/internal/context"
)

const (
	defaultRecentWindow   = 6
	defaultMaxQueries     = 5
	defaultSearchLimit    = 10
	defaultRelevantLimit  = 10
	defaultCriticalPairs  = 3
	defaultWarningPairs   = 5
	defaultNormalPairs    = 8
	defaultTurnsThreshold = 3
	defaultWarningWindow  = 5
	defaultWarningCount   = 3
)

// RetentionConfig sets how many user/assistant pairs survive a trim,
// depending on the usage level that triggered it.
type RetentionConfig struct {
	CriticalPairs int `yaml:"critical_pairs"`
	WarningPairs  int `yaml:"warning_pairs"`
	NormalPairs   int `yaml:"normal_pairs"`
}

// Config holds the engine settings.
type Config struct {
	Budget    ctxengine.BudgetConfig `yaml:"budget"`
	Retention RetentionConfig        `yaml:"retention"`

	// RecentWindow caps the chronological slice of a context bundle.
	RecentWindow int `yaml:"recent_window"`

	// MaxQueries caps the queries derived from one message.
	MaxQueries int `yaml:"max_queries"`

	// SearchLimit is the per-query result limit; RelevantLimit caps the
	// merged relevant set.
	SearchLimit   int `yaml:"search_limit"`
	RelevantLimit int `yaml:"relevant_limit"`

	// TurnsThreshold is the number of completed turns after which a
	// summary is refreshed even when usage is low.
	TurnsThreshold int `yaml:"turns_threshold"`

	// DomainKeywords are searched verbatim in user messages to derive
	// extra queries.
	DomainKeywords []string `yaml:"domain_keywords"`

	// MaxSessions bounds the session table. Zero means unlimited.
	MaxSessions int `yaml:"max_sessions"`

	// CharsPerToken tunes the estimator. Zero means 4.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

func (c Config) withDefaults() Config {
	c.Budget = c.Budget.WithDefaults()
	if c.Retention.CriticalPairs == 0 {
		c.Retention.CriticalPairs = defaultCriticalPairs
	}
	if c.Retention.WarningPairs == 0 {
		c.Retention.WarningPairs = defaultWarningPairs
	}
	if c.Retention.NormalPairs == 0 {
		c.Retention.NormalPairs = defaultNormalPairs
	}
	if c.RecentWindow == 0 {
		c.RecentWindow = defaultRecentWindow
	}
	if c.MaxQueries == 0 {
		c.MaxQueries = defaultMaxQueries
	}
	if c.SearchLimit == 0 {
		c.SearchLimit = defaultSearchLimit
	}
	if c.RelevantLimit == 0 {
		c.RelevantLimit = defaultRelevantLimit
	}
	if c.TurnsThreshold == 0 {
		c.TurnsThreshold = defaultTurnsThreshold
	}
	return c
}

// Validate returns every configuration error found.
func (c Config) Validate() error {
	c = c.withDefaults()

	errs := []error{c.Budget.Validate()}
	positive := []struct {
		name string
		v    int
	}{
		{"retention.critical_pairs", c.Retention.CriticalPairs},
		{"retention.warning_pairs", c.Retention.WarningPairs},
		{"retention.normal_pairs", c.Retention.NormalPairs},
		{"recent_window", c.RecentWindow},
		{"max_queries", c.MaxQueries},
		{"search_limit", c.SearchLimit},
		{"relevant_limit", c.RelevantLimit},
		{"turns_threshold", c.TurnsThreshold},
	}
	for _, p := range positive {
		if p.v < 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.v))
		}
	}
	if c.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("max_sessions must not be negative, got %d", c.MaxSessions))
	}
	if c.CharsPerToken < 0 {
		errs = append(errs, fmt.Errorf("chars_per_token must not be negative, got %v", c.CharsPerToken))
	}
	return errors.Join(errs...)
}
