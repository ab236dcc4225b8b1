package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry records spans and measurements. The method set matches the
// executor's telemetry contract, so any implementation here plugs
// straight into an executor builder.
type Telemetry interface {
	// StartSpan starts a trace span and returns a function that ends it.
	StartSpan(ctx context.Context, name string) (context.Context, func())

	// RecordDuration records a duration measurement in seconds.
	RecordDuration(name string, seconds float64, labels map[string]string)

	// RecordCounter increments a counter.
	RecordCounter(name string, labels map[string]string)
}

// TelemetryConfig configures telemetry.
type TelemetryConfig struct {
	// ServiceName is the service name for tracing.
	ServiceName string

	// ServiceVersion is the service version.
	ServiceVersion string

	// Environment is the deployment environment.
	Environment string

	// MetricsPrefix is the prefix for all instrument names.
	MetricsPrefix string

	// EnableTracing enables distributed tracing.
	EnableTracing bool

	// EnableMetrics enables metrics collection.
	EnableMetrics bool
}

// DefaultTelemetryConfig returns default configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		ServiceName:    "guardexec",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		EnableTracing:  true,
		EnableMetrics:  true,
		MetricsPrefix:  "guardexec_",
	}
}

// telemetry implements Telemetry on the global OpenTelemetry providers.
type telemetry struct {
	config TelemetryConfig
	tracer trace.Tracer

	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram

	errorCounter        metric.Int64Counter
	policyDeniedCounter metric.Int64Counter
}

// NewTelemetry creates a telemetry instance with the execution
// instruments registered.
func NewTelemetry(config TelemetryConfig) (Telemetry, error) {
	meter := otel.Meter(config.ServiceName)

	t := &telemetry{
		config:     config,
		tracer:     otel.Tracer(config.ServiceName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}

	executions, err := meter.Int64Counter(
		config.MetricsPrefix+"executions_total",
		metric.WithDescription("Total number of command executions"),
	)
	if err != nil {
		return nil, err
	}
	t.counters["executions"] = executions

	duration, err := meter.Float64Histogram(
		config.MetricsPrefix+"execution_duration_seconds",
		metric.WithDescription("Duration of command executions"),
	)
	if err != nil {
		return nil, err
	}
	t.histograms["execution_duration_seconds"] = duration

	t.errorCounter, err = meter.Int64Counter(
		config.MetricsPrefix+"errors_total",
		metric.WithDescription("Total number of execution errors"),
	)
	if err != nil {
		return nil, err
	}

	t.policyDeniedCounter, err = meter.Int64Counter(
		config.MetricsPrefix+"policy_denied_total",
		metric.WithDescription("Total number of policy denials"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// StartSpan implements Telemetry.StartSpan.
func (t *telemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	if !t.config.EnableTracing {
		return ctx, func() {}
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, func() {
		span.End()
	}
}

// RecordDuration implements Telemetry.RecordDuration.
func (t *telemetry) RecordDuration(name string, seconds float64, labels map[string]string) {
	if !t.config.EnableMetrics {
		return
	}

	histogram, ok := t.histograms[name]
	if !ok {
		return
	}

	attrs := labelsToAttributes(labels)
	histogram.Record(context.Background(), seconds, metric.WithAttributes(attrs...))
}

// RecordCounter implements Telemetry.RecordCounter. Counting an
// execution also feeds the error and policy-denial counters based on
// the outcome label.
func (t *telemetry) RecordCounter(name string, labels map[string]string) {
	if !t.config.EnableMetrics {
		return
	}

	counter, ok := t.counters[name]
	if !ok {
		return
	}

	attrs := labelsToAttributes(labels)
	counter.Add(context.Background(), 1, metric.WithAttributes(attrs...))

	if name != "executions" {
		return
	}
	switch labels["outcome"] {
	case "", "success":
	case "policy_denied":
		t.policyDeniedCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	default:
		t.errorCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	}
}

// labelsToAttributes converts labels to OTEL attributes.
func labelsToAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// NoopTelemetry returns a no-op telemetry implementation.
func NoopTelemetry() Telemetry {
	return &noopTelemetry{}
}

type noopTelemetry struct{}

func (t *noopTelemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *noopTelemetry) RecordDuration(name string, seconds float64, labels map[string]string) {}
func (t *noopTelemetry) RecordCounter(name string, labels map[string]string)                   {}
