// Package openai implements the provider.openai module, serving
// summarization requests through the OpenAI Chat Completions API.
package openai

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/redact"
)

// ModuleID is the module and service name of the OpenAI provider.
const ModuleID = "provider.openai"

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider implements provider.Provider on top of go-openai.
type Provider struct {
	config        Config
	logger        *slog.Logger
	client        *goopenai.Client
	contextWindow int
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	redact.AddSecret(ctx, p.config.APIKey)
	p.client = newClient(p.config, &http.Client{Timeout: p.config.Timeout})
	p.contextWindow = p.config.contextWindow()

	ctx.RegisterService(ModuleID, p)
	p.logger.Info("openai provider provisioned", "model", p.config.Model, "context_window", p.contextWindow)

	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	err := p.config.validate()
	if p.contextWindow <= 0 && p.config.Model != "" {
		err = errors.Join(err, fmt.Errorf("context_window must be set for unknown model %q", p.config.Model))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", ModuleID, err)
	}
	return nil
}

func newClient(cfg Config, httpClient *http.Client) *goopenai.Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = httpClient
	if cfg.Organization != "" {
		clientCfg.OrgID = cfg.Organization
	}
	return goopenai.NewClientWithConfig(clientCfg)
}
