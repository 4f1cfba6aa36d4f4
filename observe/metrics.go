// Package observe provides the OpenTelemetry metric instruments shared across
// the runtime. A package-level default instance is available through
// [Default]; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all runtime metrics.
const meterName = "github.com/loomhq/loom"

// Metrics holds the metric instruments. All fields are safe for concurrent
// use; the underlying OTel types handle their own synchronisation.
type Metrics struct {
	// ProviderRequests counts provider API calls. Attributes:
	//   provider, op
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes:
	//   provider, op, kind
	ProviderErrors metric.Int64Counter

	// ProviderDuration tracks provider call latency in seconds. Attributes:
	//   provider, op
	ProviderDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Attributes:
	//   tool, status
	ToolCalls metric.Int64Counter

	// ToolDuration tracks tool execution latency in seconds. Attributes:
	//   tool
	ToolDuration metric.Float64Histogram

	// LoopSteps counts executed loop steps.
	LoopSteps metric.Int64Counter

	// LoopRuns counts completed runs. Attributes:
	//   outcome (finished, exhausted, cancelled, suspended)
	LoopRuns metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model inference and tool execution latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ProviderRequests, err = m.Int64Counter("loom.provider.requests",
		metric.WithDescription("Total provider API requests by provider and operation."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("loom.provider.errors",
		metric.WithDescription("Total provider failures by provider, operation, and error kind."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("loom.provider.duration",
		metric.WithDescription("Latency of provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("loom.tool.calls",
		metric.WithDescription("Total tool invocations by tool and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("loom.tool.duration",
		metric.WithDescription("Latency of tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LoopSteps, err = m.Int64Counter("loom.loop.steps",
		metric.WithDescription("Total executed loop steps."),
	); err != nil {
		return nil, err
	}
	if met.LoopRuns, err = m.Int64Counter("loom.loop.runs",
		metric.WithDescription("Total completed runs by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level [Metrics] instance, creating it on first
// call from the global meter provider. Panics if instrument creation fails,
// which cannot happen with the global provider.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
	})
	return defaultMetrics
}
