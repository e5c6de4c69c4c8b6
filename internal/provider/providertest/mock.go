// Package providertest provides test doubles for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/chatmem/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Unset funcs panic on call, except ContextWindowSizeFunc and
// ModelNameFunc which fall back to fixed values.
// All methods are safe for concurrent use.
type MockProvider struct {
	CompleteFunc          func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	ContextWindowSizeFunc func() int
	ModelNameFunc         func() string
	HealthCheckFunc       func(ctx context.Context) error

	mu            sync.Mutex
	completeCalls int
	healthCalls   int
	lastRequest   provider.CompletionRequest
}

// Complete delegates to CompleteFunc and records the request.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.completeCalls++
	m.lastRequest = req
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ContextWindowSize delegates to ContextWindowSizeFunc, or returns 8192.
func (m *MockProvider) ContextWindowSize() int {
	if m.ContextWindowSizeFunc == nil {
		return 8192
	}
	return m.ContextWindowSizeFunc()
}

// ModelName delegates to ModelNameFunc, or returns "mock-model".
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock-model"
	}
	return m.ModelNameFunc()
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.healthCalls++
	m.mu.Unlock()
	return m.HealthCheckFunc(ctx)
}

// CompleteCalls returns how many times Complete was called.
func (m *MockProvider) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

// HealthCalls returns how many times HealthCheck was called.
func (m *MockProvider) HealthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthCalls
}

// LastRequest returns the most recent request passed to Complete.
func (m *MockProvider) LastRequest() provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// MockGenerator is a test double for provider.Generator. When GenerateFunc
// is nil it returns Output.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, msgs []provider.LLMMessage, detailed bool) (string, error)
	Output       string

	mu    sync.Mutex
	calls [][]provider.LLMMessage
}

// Generate records msgs and delegates to GenerateFunc.
func (g *MockGenerator) Generate(ctx context.Context, msgs []provider.LLMMessage, detailed bool) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, append([]provider.LLMMessage(nil), msgs...))
	g.mu.Unlock()
	if g.GenerateFunc != nil {
		return g.GenerateFunc(ctx, msgs, detailed)
	}
	return g.Output, nil
}

// Calls returns a copy of every message list passed to Generate.
func (g *MockGenerator) Calls() [][]provider.LLMMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]provider.LLMMessage(nil), g.calls...)
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
	_ provider.Generator     = (*MockGenerator)(nil)
)
