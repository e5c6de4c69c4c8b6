// Package provider defines the Provider interface used to reach an LLM,
// health tracking with exponential backoff, a failover chain, and the
// Generator abstraction consumed by the summarizer.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// ChainEntry configures a single provider in the chain.
type ChainEntry struct {
	Name     string
	Provider Provider
	Role     Role
	Health   HealthConfig
}

type chainEntry struct {
	ChainEntry
	health *healthTracker
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger injects a structured logger into the Chain.
// When nil or omitted, log output is discarded.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Chain orchestrates failover across several providers. Entries whose role
// matches the request come first, in configuration order, followed by
// fallback entries.
type Chain struct {
	entries []chainEntry
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChain creates a chain from the given entries.
func NewChain(entries []ChainEntry, opts ...ChainOption) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}

	internal := make([]chainEntry, len(entries))
	for i, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: entry %q has nil provider", ErrNoProvider, e.Name)
		}
		if e.Role == "" {
			e.Role = RolePrimary
		}
		internal[i] = chainEntry{ChainEntry: e, health: newHealthTracker(e.Health)}
	}

	c := &Chain{entries: internal}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(nopHandler{})
	}

	for i := range c.entries {
		e := &c.entries[i]
		e.health.onTransition = func(from, to healthState) {
			_, failures, backoff, _ := e.health.snapshot()
			switch to {
			case stateCooldown:
				c.logger.Warn("provider entered cooldown", "provider", e.Name, "backoff", backoff, "failures", failures)
			case stateDead:
				c.logger.Error("provider marked dead", "provider", e.Name, "failures", failures)
			case stateHealthy:
				c.logger.Info("provider revived", "provider", e.Name, "previous_state", from.String())
			}
		}
	}

	return c, nil
}

// Start launches the background health probe loop. Calling Start on a
// running chain is a no-op.
func (c *Chain) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)

	interval := c.entries[0].health.cfg.CheckInterval
	for i := 1; i < len(c.entries); i++ {
		interval = min(interval, c.entries[i].health.cfg.CheckInterval)
	}
	go c.probeLoop(ctx, interval)
}

// Stop cancels background health probes.
func (c *Chain) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Complete sends req to the best available provider for role, failing over
// to the next candidate on retryable errors.
func (c *Chain) Complete(ctx context.Context, role Role, req CompletionRequest) (CompletionResponse, error) {
	candidates := c.candidates(role)
	if len(candidates) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w for role %q", ErrNoProvider, role)
	}

	var lastErr error
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !e.health.IsAvailable() {
			continue
		}

		resp, err := e.Provider.Complete(ctx, req)
		if err == nil {
			e.health.RecordSuccess()
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return CompletionResponse{}, err
		}
		e.health.RecordFailure()
		c.logger.Warn("provider failed, failing over", "provider", e.Name, "error", err)
	}

	if lastErr != nil {
		c.logger.Error("all providers exhausted", "role", role, "last_error", lastErr)
		return CompletionResponse{}, fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
	}
	c.logger.Error("all providers exhausted", "role", role)
	return CompletionResponse{}, fmt.Errorf("%w for role %q: all candidates unavailable", ErrAllProviders, role)
}

// GetProvider returns the first available provider for the given role.
func (c *Chain) GetProvider(role Role) (Provider, error) {
	for _, e := range c.candidates(role) {
		if e.health.IsAvailable() {
			return e.Provider, nil
		}
	}
	return nil, fmt.Errorf("%w for role %q", ErrNoProvider, role)
}

// ContextWindowSize returns the smallest context window among the entries
// serving role, so a budget derived from it fits every candidate.
func (c *Chain) ContextWindowSize(role Role) int {
	size := 0
	for _, e := range c.candidates(role) {
		if n := e.Provider.ContextWindowSize(); n > 0 && (size == 0 || n < size) {
			size = n
		}
	}
	return size
}

// HealthReport returns the health status of every entry in configuration
// order.
func (c *Chain) HealthReport() []Status {
	out := make([]Status, 0, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		state, failures, _, available := e.health.snapshot()
		out = append(out, Status{
			Name:      e.Name,
			Model:     e.Provider.ModelName(),
			State:     state.String(),
			Failures:  failures,
			Available: available,
		})
	}
	return out
}

func (c *Chain) candidates(role Role) []*chainEntry {
	var direct, fallbacks []*chainEntry
	for i := range c.entries {
		e := &c.entries[i]
		switch {
		case e.Role == role:
			direct = append(direct, e)
		case e.Role == RoleFallback:
			fallbacks = append(fallbacks, e)
		}
	}
	return append(direct, fallbacks...)
}

func (c *Chain) probeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe runs one health check round over entries that need it.
func (c *Chain) probe(ctx context.Context) {
	for i := range c.entries {
		e := &c.entries[i]
		if !e.health.NeedsProbe() {
			continue
		}
		checker, ok := e.Provider.(HealthChecker)
		if !ok {
			continue
		}
		if err := checker.HealthCheck(ctx); err == nil {
			e.health.RecordSuccess()
		} else {
			c.logger.Debug("health probe failed", "provider", e.Name, "error", err)
		}
	}
}
