// Package anthropic implements the provider.anthropic module, serving
// summarization requests through the Anthropic Messages API.
package anthropic

import (
	"errors"
	"fmt"
	"log/slog"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/redact"
)

// ModuleID is the module and service name of the Anthropic provider.
const ModuleID = "provider.anthropic"

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module            = (*Anthropic)(nil)
	_ core.Configurable      = (*Anthropic)(nil)
	_ core.Provisioner       = (*Anthropic)(nil)
	_ core.Validator         = (*Anthropic)(nil)
	_ provider.Provider      = (*Anthropic)(nil)
	_ provider.HealthChecker = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module. It implements provider.Provider
// and provider.HealthChecker using the Anthropic Messages API.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	apiKey := a.config.apiKey()
	redact.AddSecret(ctx, apiKey)

	// The provider chain owns retries and failover.
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(a.config.Timeout),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		a.logger.Warn("no api key configured", "api_key_env", a.config.APIKeyEnv)
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	a.client = &client

	ctx.RegisterService(ModuleID, a)
	a.logger.Info("anthropic provider provisioned", "model", a.config.Model, "context_window", a.config.ContextWindow)
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	err := a.config.validate()
	if a.client == nil {
		err = errors.Join(err, errors.New("client not initialized (Provision not called)"))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", ModuleID, err)
	}
	return nil
}

// ContextWindowSize implements provider.Provider.
func (a *Anthropic) ContextWindowSize() int {
	return a.config.ContextWindow
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}
