package provider

import "context"

// Provider is the interface for communicating with an LLM.
// Concrete implementations live under modules/provider and register
// themselves as core modules.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ContextWindowSize returns the maximum context window in tokens.
	ContextWindowSize() int

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface for providers that support
// active probing. The chain calls it while a provider is in cooldown
// or marked dead.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
