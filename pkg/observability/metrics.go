// Package observability wires OpenTelemetry metrics (exported through
// Prometheus) and optional OTLP tracing around the RPC surface and the
// triage bridge.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the Prometheus-backed meter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// InitMetrics creates the meter provider and the instrument set. When
// disabled, the returned metrics are inert.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("triagent")

	rpcDuration, err := meter.Float64Histogram(
		"triagent_rpc_duration_seconds",
		metric.WithDescription("JSON-RPC request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc duration histogram: %w", err)
	}

	rpcCalls, err := meter.Int64Counter(
		"triagent_rpc_requests_total",
		metric.WithDescription("Total JSON-RPC requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc requests counter: %w", err)
	}

	rpcErrors, err := meter.Int64Counter(
		"triagent_rpc_errors_total",
		metric.WithDescription("Total JSON-RPC error responses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc errors counter: %w", err)
	}

	triageDuration, err := meter.Float64Histogram(
		"triagent_triage_call_duration_seconds",
		metric.WithDescription("Triage engine call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage duration histogram: %w", err)
	}

	triageErrors, err := meter.Int64Counter(
		"triagent_triage_errors_total",
		metric.WithDescription("Total triage engine call failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage errors counter: %w", err)
	}

	activeTasks, err := meter.Int64UpDownCounter(
		"triagent_tasks_active",
		metric.WithDescription("Tasks currently held in the store"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active tasks counter: %w", err)
	}

	return &PrometheusMetrics{
		rpcDuration:    rpcDuration,
		rpcCalls:       rpcCalls,
		rpcErrors:      rpcErrors,
		triageDuration: triageDuration,
		triageErrors:   triageErrors,
		activeTasks:    activeTasks,
	}, nil
}
