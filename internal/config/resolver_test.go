package config

import (
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestResolve_NamespaceOrder(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{
		"gateway.http":       {},
		"memory.engine":      {},
		"store.sqlite":       {},
		"provider.openai":    {},
		"provider.anthropic": {},
		"telemetry.otel":     {},
		"custom.extra":       {},
	}}

	want := []string{
		"telemetry.otel",
		"provider.anthropic",
		"provider.openai",
		"store.sqlite",
		"memory.engine",
		"gateway.http",
		"custom.extra",
	}
	if got := Resolve(cfg); !slices.Equal(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolve_Empty(t *testing.T) {
	t.Parallel()

	if got := Resolve(&Config{}); len(got) != 0 {
		t.Errorf("Resolve = %v, want empty", got)
	}
}
