package otel

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jilio/sift"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// errorMeterProvider wraps a real MeterProvider and fails creation of a
// named instrument
type errorMeterProvider struct {
	metric.MeterProvider
	base   metric.MeterProvider
	failOn string
}

func (e *errorMeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return &errorMeter{
		Meter:  e.base.Meter(name, opts...),
		failOn: e.failOn,
	}
}

// errorMeter wraps a real Meter and returns errors for specific metric names
type errorMeter struct {
	metric.Meter
	failOn string
}

func (e *errorMeter) Int64Counter(name string, options ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == e.failOn {
		return nil, fmt.Errorf("failed to create counter: %s", name)
	}
	return e.Meter.Int64Counter(name, options...)
}

func (e *errorMeter) Float64Histogram(name string, options ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == e.failOn {
		return nil, fmt.Errorf("failed to create histogram: %s", name)
	}
	return e.Meter.Float64Histogram(name, options...)
}

func TestNew(t *testing.T) {
	t.Run("default_providers", func(t *testing.T) {
		obs, err := New()
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		if obs == nil {
			t.Fatal("New() returned nil")
		}
	})

	t.Run("custom_tracer_provider", func(t *testing.T) {
		provider := sdktrace.NewTracerProvider()
		obs, err := New(WithTracerProvider(provider))
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		if obs == nil {
			t.Fatal("New() returned nil")
		}
	})

	t.Run("custom_meter_provider", func(t *testing.T) {
		provider := sdkmetric.NewMeterProvider()
		obs, err := New(WithMeterProvider(provider))
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		if obs == nil {
			t.Fatal("New() returned nil")
		}
	})

	t.Run("metric_creation_failures", func(t *testing.T) {
		failures := []string{
			"sift.dispatch.count",
			"sift.dispatch.duration",
			"sift.field.changes",
			"sift.effect.count",
			"sift.effect.duration",
			"sift.effect.errors",
		}

		for _, name := range failures {
			t.Run(name, func(t *testing.T) {
				provider := &errorMeterProvider{
					base:   sdkmetric.NewMeterProvider(),
					failOn: name,
				}
				if _, err := New(WithMeterProvider(provider)); err == nil {
					t.Errorf("New() should fail when %s cannot be created", name)
				}
			})
		}
	})
}

// Test state and actions mirroring the counter feature.
type counterState struct {
	Count     int
	IsLoading bool
	Fact      string
}

type (
	fetchTapped  struct{}
	factReceived struct{ Fact string }
)

func counterRegistry(t *testing.T) *sift.Registry[counterState] {
	t.Helper()
	r, err := sift.NewRegistry(
		sift.NewField("count", func(s counterState) int { return s.Count }).Descriptor(),
		sift.NewField("isLoading", func(s counterState) bool { return s.IsLoading }).Descriptor(),
		sift.NewField("fact", func(s counterState) string { return s.Fact }).Descriptor(),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func counterReduce(s counterState, a any) (counterState, sift.Effect[any]) {
	switch act := a.(type) {
	case fetchTapped:
		s.IsLoading = true
		return s, sift.Run(func(ctx context.Context, send sift.Send[any]) {
			send.Send(factReceived{Fact: "42 is nice"})
		})
	case factReceived:
		s.IsLoading = false
		s.Fact = act.Fact
	}
	return s, sift.None[any]()
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterSum(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is not an int64 sum", m.Name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestStoreInstrumentation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	obs, err := New(
		WithTracerProvider(tracerProvider),
		WithMeterProvider(meterProvider),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	store, err := sift.New(counterState{}, counterReduce, counterRegistry(t),
		sift.WithObservability[counterState, any](obs))
	if err != nil {
		t.Fatalf("sift.New failed: %v", err)
	}
	defer store.Close()

	store.Dispatch(fetchTapped{})
	store.WaitEffects()

	metrics := collectMetrics(t, reader)

	// Two dispatches: the tap and the effect-sent response.
	if m, ok := metrics["sift.dispatch.count"]; !ok {
		t.Error("sift.dispatch.count not recorded")
	} else if got := counterSum(t, m); got != 2 {
		t.Errorf("dispatch count = %d, want 2", got)
	}

	// Three field changes: isLoading up, then isLoading down and fact.
	if m, ok := metrics["sift.field.changes"]; !ok {
		t.Error("sift.field.changes not recorded")
	} else if got := counterSum(t, m); got != 3 {
		t.Errorf("field changes = %d, want 3", got)
	}

	if m, ok := metrics["sift.effect.count"]; !ok {
		t.Error("sift.effect.count not recorded")
	} else if got := counterSum(t, m); got != 1 {
		t.Errorf("effect count = %d, want 1", got)
	}

	if _, ok := metrics["sift.dispatch.duration"]; !ok {
		t.Error("sift.dispatch.duration not recorded")
	}
	if _, ok := metrics["sift.effect.duration"]; !ok {
		t.Error("sift.effect.duration not recorded")
	}

	// Spans: two dispatches and one effect.
	spans := recorder.Ended()
	var dispatchSpans, effectSpans int
	for _, span := range spans {
		switch {
		case strings.HasPrefix(span.Name(), "sift.dispatch: "):
			dispatchSpans++
		case strings.HasPrefix(span.Name(), "sift.effect: "):
			effectSpans++
		}
	}
	if dispatchSpans != 2 {
		t.Errorf("dispatch spans = %d, want 2", dispatchSpans)
	}
	if effectSpans != 1 {
		t.Errorf("effect spans = %d, want 1", effectSpans)
	}
}

func TestEffectPanicRecordsError(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tracerProvider := sdktrace.NewTracerProvider()

	obs, err := New(
		WithTracerProvider(tracerProvider),
		WithMeterProvider(meterProvider),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	reduce := func(s counterState, a any) (counterState, sift.Effect[any]) {
		return s, sift.Run(func(ctx context.Context, send sift.Send[any]) {
			panic("effect boom")
		})
	}

	store, err := sift.New(counterState{}, reduce, counterRegistry(t),
		sift.WithObservability[counterState, any](obs))
	if err != nil {
		t.Fatalf("sift.New failed: %v", err)
	}
	defer store.Close()

	store.Dispatch(fetchTapped{})
	store.WaitEffects()

	metrics := collectMetrics(t, reader)

	if m, ok := metrics["sift.effect.errors"]; !ok {
		t.Error("sift.effect.errors not recorded")
	} else if got := counterSum(t, m); got != 1 {
		t.Errorf("effect errors = %d, want 1", got)
	}
}
