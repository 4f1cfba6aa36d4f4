package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.ProviderRequests == nil || m.ProviderErrors == nil || m.ProviderDuration == nil ||
		m.ToolCalls == nil || m.ToolDuration == nil || m.LoopSteps == nil || m.LoopRuns == nil {
		t.Fatal("instrument left nil")
	}
}

func TestMetricsRecording(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", "stub"),
		attribute.String("op", "chat"),
	))
	m.ProviderDuration.Record(ctx, 0.42, metric.WithAttributes(
		attribute.String("provider", "stub"),
		attribute.String("op", "chat"),
	))
	m.LoopRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "finished")))
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Error("Default must return the same instance")
	}
}
