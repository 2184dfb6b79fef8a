package instrumentation

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// scopeName is the instrumentation scope for meters and tracers.
	scopeName = "github.com/helmgrove/integration-oauth"

	// DefaultServiceName is used when no service name is configured.
	DefaultServiceName = "integration-oauth"
)

// Config holds instrumentation configuration.
type Config struct {
	// ServiceName identifies the service in resource attributes.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Enabled controls whether instrumentation is active. When false,
	// no-op providers are used regardless of the fields below.
	Enabled bool

	// MeterProvider supplies meters. Nil means no-op.
	MeterProvider metric.MeterProvider

	// TracerProvider supplies tracers. Nil means no-op.
	TracerProvider trace.TracerProvider
}

// Instrumentation provides the OpenTelemetry components used by the engine.
type Instrumentation struct {
	resource *resource.Resource
	meter    metric.Meter
	tracer   trace.Tracer
	metrics  *Metrics
}

// New creates a new instrumentation instance. Errors only arise from metric
// instrument registration.
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}

	mp := config.MeterProvider
	tp := config.TracerProvider
	if !config.Enabled || mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	if !config.Enabled || tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	)

	inst := &Instrumentation{
		resource: res,
		meter:    mp.Meter(scopeName),
		tracer:   tp.Tracer(scopeName),
	}

	var err error
	inst.metrics, err = newMetrics(inst.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	return inst, nil
}

// Resource returns the resource describing this service, for callers
// constructing SDK providers.
func (i *Instrumentation) Resource() *resource.Resource {
	return i.resource
}

// Metrics returns the pre-registered metric instruments.
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// Tracer returns the engine's tracer.
func (i *Instrumentation) Tracer() trace.Tracer {
	return i.tracer
}
