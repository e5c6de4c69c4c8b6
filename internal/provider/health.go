package provider

import (
	"sync"
	"time"
)

// healthState is the availability state of one chain entry.
type healthState int

const (
	stateHealthy  healthState = iota
	stateCooldown             // transient failure, backing off
	stateDead                 // too many consecutive failures
)

// String returns a human-readable label for the health state.
func (s healthState) String() string {
	switch s {
	case stateHealthy:
		return "healthy"
	case stateCooldown:
		return "cooldown"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthConfig controls health tracking behavior.
type HealthConfig struct {
	// InitialBackoff is the cooldown after the first failure. Default: 1s.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the exponential backoff. Default: 60s.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxFailures is the number of consecutive failures before the entry
	// is marked dead. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// CheckInterval is how often dead or cooled-down entries are probed.
	// Default: 10s.
	CheckInterval time.Duration `yaml:"check_interval"`
}

func (c *HealthConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Second
	}
}

// Status is a point-in-time health view of one chain entry.
type Status struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	State     string `json:"state"`
	Failures  int    `json:"failures"`
	Available bool   `json:"available"`
}

// healthTracker implements exponential backoff for a single provider and
// marks it dead after MaxFailures consecutive failures.
type healthTracker struct {
	cfg HealthConfig

	// onTransition is invoked outside the lock on every state change.
	onTransition func(from, to healthState)

	mu       sync.Mutex
	state    healthState
	failures int
	backoff  time.Duration
	retryAt  time.Time

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

func newHealthTracker(cfg HealthConfig) *healthTracker {
	cfg.defaults()
	return &healthTracker{cfg: cfg, now: time.Now}
}

// IsAvailable reports whether the provider can accept requests. An entry
// in cooldown becomes available again once its backoff has elapsed.
func (h *healthTracker) IsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.availableLocked()
}

func (h *healthTracker) availableLocked() bool {
	switch h.state {
	case stateHealthy:
		return true
	case stateCooldown:
		return !h.now().Before(h.retryAt)
	default:
		return false
	}
}

// RecordSuccess resets the tracker to healthy.
func (h *healthTracker) RecordSuccess() {
	h.mu.Lock()
	prev := h.state
	h.state = stateHealthy
	h.failures = 0
	h.backoff = 0
	h.mu.Unlock()

	h.transition(prev, stateHealthy)
}

// RecordFailure moves the tracker to cooldown, doubling the backoff on each
// consecutive failure, or to dead once MaxFailures is reached.
func (h *healthTracker) RecordFailure() {
	h.mu.Lock()
	prev := h.state
	h.failures++
	if h.failures >= h.cfg.MaxFailures {
		h.state = stateDead
	} else {
		h.state = stateCooldown
		h.backoff = min(max(h.backoff*2, h.cfg.InitialBackoff), h.cfg.MaxBackoff)
		h.retryAt = h.now().Add(h.backoff)
	}
	next := h.state
	h.mu.Unlock()

	h.transition(prev, next)
}

func (h *healthTracker) transition(from, to healthState) {
	if from != to && h.onTransition != nil {
		h.onTransition(from, to)
	}
}

// NeedsProbe reports whether an active health check should run: dead
// entries always, cooled-down entries once their backoff expired.
func (h *healthTracker) NeedsProbe() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateDead || (h.state == stateCooldown && h.availableLocked())
}

func (h *healthTracker) snapshot() (healthState, int, time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.failures, h.backoff, h.availableLocked()
}
