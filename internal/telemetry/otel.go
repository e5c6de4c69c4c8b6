package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/redact"
)

// TracerProviderService is the service name of the installed
// *sdktrace.TracerProvider.
const TracerProviderService = "telemetry.tracer_provider"

func init() {
	core.RegisterModule(&OTel{})
}

// Interface guards.
var (
	_ core.Module       = (*OTel)(nil)
	_ core.Configurable = (*OTel)(nil)
	_ core.Provisioner  = (*OTel)(nil)
	_ core.Validator    = (*OTel)(nil)
	_ core.Stopper      = (*OTel)(nil)
)

// OTelConfig configures the OTLP/HTTP trace exporter.
type OTelConfig struct {
	// Endpoint is host:port or a full URL such as
	// "https://collector:4318/v1/traces".
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	ServiceName string            `yaml:"service_name"`
	SampleRatio float64           `yaml:"sample_ratio"`
	Timeout     time.Duration     `yaml:"timeout"`
}

func (c *OTelConfig) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = "chatmem"
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *OTelConfig) validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("sample_ratio must be in [0, 1], got %v", c.SampleRatio))
	}
	return errors.Join(errs...)
}

// OTel is the telemetry.otel module. It installs a batching tracer
// provider as the global OpenTelemetry provider, so that spans started by
// the engine and the gateway are exported.
type OTel struct {
	config   OTelConfig
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (o *OTel) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otel",
		New: func() core.Module { return &OTel{} },
	}
}

// Configure implements core.Configurable.
func (o *OTel) Configure(node *yaml.Node) error {
	if err := node.Decode(&o.config); err != nil {
		return err
	}
	o.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (o *OTel) Provision(ctx *core.AppContext) error {
	o.logger = ctx.Logger
	o.config.defaults()
	for _, v := range o.config.Headers {
		redact.AddSecret(ctx, v)
	}
	if err := o.config.validate(); err != nil {
		return fmt.Errorf("telemetry.otel: %w", err)
	}

	exporter, err := otlptracehttp.New(context.Background(), o.exporterOptions()...)
	if err != nil {
		return fmt.Errorf("telemetry.otel: creating exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", o.config.ServiceName))
	o.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.config.SampleRatio))),
	)
	otel.SetTracerProvider(o.provider)
	ctx.RegisterService(TracerProviderService, o.provider)

	o.logger.Info("tracing enabled",
		"endpoint", o.config.Endpoint,
		"service", o.config.ServiceName,
		"sample_ratio", o.config.SampleRatio,
	)
	return nil
}

func (o *OTel) exporterOptions() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(o.config.Timeout)}
	if strings.Contains(o.config.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(o.config.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(o.config.Endpoint))
	}
	if o.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(o.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(o.config.Headers))
	}
	return opts
}

// Validate implements core.Validator.
func (o *OTel) Validate() error {
	if o.provider == nil {
		return errors.New("telemetry.otel: tracer provider not initialized (Provision not called)")
	}
	return nil
}

// Stop implements core.Stopper. It flushes pending spans.
func (o *OTel) Stop(ctx context.Context) error {
	if o.provider == nil {
		return nil
	}
	if err := o.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry.otel: shutdown: %w", err)
	}
	return nil
}
