package openai

import (
	"context"
	"fmt"

	"github.com/flemzord/chatmem/internal/provider"
)

// Complete sends a completion request and returns the full response.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildChatRequest(req))
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return provider.CompletionResponse{}, fmt.Errorf("openai: %w", provider.ErrEmptyResponse)
	}
	return fromResponse(&resp), nil
}

// HealthCheck lists the endpoint's models and checks that the configured
// one is served. It spends no completion tokens.
func (p *Provider) HealthCheck(ctx context.Context) error {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return mapError(err)
	}
	for _, m := range models.Models {
		if m.ID == p.config.Model {
			return nil
		}
	}
	return fmt.Errorf("openai: model %q not served by %s: %w", p.config.Model, p.config.BaseURL, provider.ErrProviderDown)
}

// ContextWindowSize returns the maximum context window in tokens.
func (p *Provider) ContextWindowSize() int {
	return p.contextWindow
}

// ModelName returns the configured model identifier.
func (p *Provider) ModelName() string {
	return p.config.Model
}
