// Package telemetry holds the process-wide observability plumbing: the
// shared Prometheus registry and the telemetry.otel module that installs
// an OpenTelemetry tracer provider.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/chatmem/internal/core"
)

// RegistryService is the service name of the shared *prometheus.Registry.
const RegistryService = "metrics.registry"

var registryMu sync.Mutex

// Registry returns the registry published on ctx, creating and publishing
// one with the Go and process collectors when none exists yet.
func Registry(ctx *core.AppContext) *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()

	if reg, ok := core.ServiceAs[*prometheus.Registry](ctx, RegistryService); ok {
		return reg
	}
	reg := NewRegistry()
	ctx.RegisterService(RegistryService, reg)
	return reg
}

// NewRegistry creates a registry with the Go runtime and process
// collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
