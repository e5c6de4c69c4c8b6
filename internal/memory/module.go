package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/cron"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/telemetry"
)

// Service names published by the memory.engine module.
const (
	EngineService = "memory.engine"
	ChainService  = "provider.chain"
)

func init() {
	core.RegisterModule(&Module{})
}

// Interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ProviderRef points at a provider module in the summarization chain.
type ProviderRef struct {
	Module string                `yaml:"module"`
	Role   provider.Role         `yaml:"role"`
	Health provider.HealthConfig `yaml:"health"`
}

// CleanupConfig configures the idle session sweep.
type CleanupConfig struct {
	MaxIdle  time.Duration `yaml:"max_idle"`
	Schedule string        `yaml:"schedule"`
	Disabled bool          `yaml:"disabled"`
}

// CompactionConfig configures the background compaction sweep.
type CompactionConfig struct {
	Schedule string `yaml:"schedule"`
	Disabled bool   `yaml:"disabled"`
}

// ModuleConfig is the YAML configuration of the memory.engine module.
type ModuleConfig struct {
	Config `yaml:",inline"`

	// Providers form the summarization chain, in failover order.
	Providers []ProviderRef `yaml:"providers"`

	// SummaryRole selects the chain role used for summaries.
	SummaryRole provider.Role `yaml:"summary_role"`

	// Store names a service acting as durable store and searcher, such as
	// "store.sqlite". Empty means in-process keyword search only.
	Store string `yaml:"store"`

	Cleanup    CleanupConfig    `yaml:"cleanup"`
	Compaction CompactionConfig `yaml:"compaction"`
}

func (c *ModuleConfig) defaults() {
	if c.SummaryRole == "" {
		c.SummaryRole = provider.RolePrimary
	}
	for i := range c.Providers {
		if c.Providers[i].Role == "" {
			c.Providers[i].Role = provider.RolePrimary
		}
	}
}

func (c *ModuleConfig) validate() error {
	var errs []error
	for i, p := range c.Providers {
		if p.Module == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: module is required", i))
		}
	}
	if c.Cleanup.MaxIdle < 0 {
		errs = append(errs, fmt.Errorf("cleanup.max_idle must not be negative, got %v", c.Cleanup.MaxIdle))
	}
	errs = append(errs, c.Config.Validate())
	return errors.Join(errs...)
}

// Module is the memory.engine module. It assembles the Engine from the
// services of the provider and store modules and runs its maintenance
// jobs.
type Module struct {
	config    ModuleConfig
	logger    *slog.Logger
	engine    *Engine
	chain     *provider.Chain
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.engine",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.config.defaults()
	if err := m.config.validate(); err != nil {
		return fmt.Errorf("memory.engine: %w", err)
	}

	opts := []Option{
		WithLogger(m.logger),
		WithMetrics(NewMetrics(telemetry.Registry(ctx))),
	}

	cfg := m.config.Config
	if len(m.config.Providers) > 0 {
		chain, err := m.buildChain(ctx)
		if err != nil {
			return err
		}
		m.chain = chain
		ctx.RegisterService(ChainService, chain)

		if cfg.Budget.MaxContextTokens == 0 {
			if window := chain.ContextWindowSize(m.config.SummaryRole); window > 0 {
				cfg.Budget.MaxContextTokens = window
				m.logger.Info("context window taken from provider chain", "max_context_tokens", window)
			}
		}
		gen := &provider.ChainGenerator{Chain: chain, Role: m.config.SummaryRole}
		opts = append(opts, WithSummarizer(ctxengine.NewLLMSummarizer(gen)))
	} else {
		m.logger.Info("no providers configured, history is trimmed without summaries")
	}

	storeOpts, err := m.storeOptions(ctx)
	if err != nil {
		return err
	}
	opts = append(opts, storeOpts...)

	engine, err := New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("memory.engine: %w", err)
	}
	m.engine = engine
	ctx.RegisterService(EngineService, engine)

	m.scheduler = cron.NewScheduler(m.logger.With("component", "cron"))
	if err := m.registerJobs(); err != nil {
		return fmt.Errorf("memory.engine: %w", err)
	}
	return nil
}

func (m *Module) buildChain(ctx *core.AppContext) (*provider.Chain, error) {
	entries := make([]provider.ChainEntry, 0, len(m.config.Providers))
	for _, ref := range m.config.Providers {
		p, ok := core.ServiceAs[provider.Provider](ctx, ref.Module)
		if !ok {
			return nil, fmt.Errorf("memory.engine: provider %q is not loaded", ref.Module)
		}
		entries = append(entries, provider.ChainEntry{
			Name:     ref.Module,
			Provider: p,
			Role:     ref.Role,
			Health:   ref.Health,
		})
	}
	chain, err := provider.NewChain(entries, provider.WithLogger(m.logger.With("component", "chain")))
	if err != nil {
		return nil, fmt.Errorf("memory.engine: %w", err)
	}
	return chain, nil
}

func (m *Module) storeOptions(ctx *core.AppContext) ([]Option, error) {
	if m.config.Store == "" {
		return nil, nil
	}
	svc, ok := ctx.Service(m.config.Store)
	if !ok {
		return nil, fmt.Errorf("memory.engine: store %q is not loaded", m.config.Store)
	}

	var opts []Option
	if d, ok := svc.(DurableStore); ok {
		opts = append(opts, WithDurableStore(d))
	}
	if s, ok := svc.(Searcher); ok {
		opts = append(opts, WithSearcher(s))
	}
	if i, ok := svc.(Indexer); ok {
		opts = append(opts, WithIndexer(i))
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("memory.engine: service %q is neither a durable store nor a searcher", m.config.Store)
	}
	return opts, nil
}

func (m *Module) registerJobs() error {
	if !m.config.Cleanup.Disabled {
		job := &cron.IdleCleanupJob{
			Sweeper:      m.engine,
			MaxIdle:      m.config.Cleanup.MaxIdle,
			Logger:       m.logger,
			ScheduleExpr: m.config.Cleanup.Schedule,
		}
		if err := m.scheduler.RegisterJob(job); err != nil {
			return err
		}
	}
	if !m.config.Compaction.Disabled {
		job := &cron.CompactionJob{
			Compactor:    m.engine,
			Logger:       m.logger,
			ScheduleExpr: m.config.Compaction.Schedule,
		}
		if err := m.scheduler.RegisterJob(job); err != nil {
			return err
		}
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.engine == nil {
		return errors.New("memory.engine: engine not initialized (Provision not called)")
	}
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if m.chain != nil {
		m.chain.Start(context.Background())
	}
	if err := m.scheduler.Start(); err != nil {
		return fmt.Errorf("memory.engine: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.chain != nil {
		m.chain.Stop()
	}
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Engine returns the provisioned engine.
func (m *Module) Engine() *Engine { return m.engine }

// Scheduler returns the maintenance scheduler.
func (m *Module) Scheduler() *cron.Scheduler { return m.scheduler }
