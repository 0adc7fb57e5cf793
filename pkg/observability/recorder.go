package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records service-level measurements. Implementations must
// tolerate a nil receiver so call sites never need guards.
type Metrics interface {
	RecordRPC(ctx context.Context, method string, duration time.Duration, rpcErr bool)
	RecordTriageCall(ctx context.Context, operation string, duration time.Duration, err error)
	TaskAdded(ctx context.Context)
}

// PrometheusMetrics implements Metrics on OTel instruments.
type PrometheusMetrics struct {
	rpcDuration    metric.Float64Histogram
	rpcCalls       metric.Int64Counter
	rpcErrors      metric.Int64Counter
	triageDuration metric.Float64Histogram
	triageErrors   metric.Int64Counter
	activeTasks    metric.Int64UpDownCounter
}

func (m *PrometheusMetrics) RecordRPC(ctx context.Context, method string, duration time.Duration, rpcErr bool) {
	if m == nil || m.rpcDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("method", method))
	m.rpcDuration.Record(ctx, duration.Seconds(), attrs)
	m.rpcCalls.Add(ctx, 1, attrs)
	if rpcErr {
		m.rpcErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordTriageCall(ctx context.Context, operation string, duration time.Duration, err error) {
	if m == nil || m.triageDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.triageDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.triageErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) TaskAdded(ctx context.Context) {
	if m == nil || m.activeTasks == nil {
		return
	}
	m.activeTasks.Add(ctx, 1)
}

// SetGlobalMetrics installs the process-wide recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder, possibly nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
