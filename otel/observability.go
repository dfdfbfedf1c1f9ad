// Package otel implements sift.Observability with OpenTelemetry
// metrics and traces.
package otel

import (
	"context"
	"time"

	"github.com/jilio/sift"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jilio/sift"

// Observability implements sift.Observability using OpenTelemetry
type Observability struct {
	tracer trace.Tracer
	meter  metric.Meter

	// Metrics
	dispatchCounter  metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	fieldChanges     metric.Int64Counter
	effectCounter    metric.Int64Counter
	effectDuration   metric.Float64Histogram
	effectErrors     metric.Int64Counter
}

// Option configures the Observability
type Option func(*Observability)

// WithTracerProvider sets a custom tracer provider
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observability) {
		o.tracer = provider.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets a custom meter provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observability) {
		o.meter = provider.Meter(instrumentationName)
	}
}

// New creates a new OpenTelemetry observability implementation
func New(opts ...Option) (*Observability, error) {
	obs := &Observability{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	// Apply options
	for _, opt := range opts {
		opt(obs)
	}

	// Initialize metrics
	var err error

	obs.dispatchCounter, err = obs.meter.Int64Counter(
		"sift.dispatch.count",
		metric.WithDescription("Number of actions dispatched"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	obs.dispatchDuration, err = obs.meter.Float64Histogram(
		"sift.dispatch.duration",
		metric.WithDescription("Dispatch duration (reducer plus diff)"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.fieldChanges, err = obs.meter.Int64Counter(
		"sift.field.changes",
		metric.WithDescription("Number of field-level change notifications"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	obs.effectCounter, err = obs.meter.Int64Counter(
		"sift.effect.count",
		metric.WithDescription("Number of effect operations executed"),
		metric.WithUnit("{effect}"),
	)
	if err != nil {
		return nil, err
	}

	obs.effectDuration, err = obs.meter.Float64Histogram(
		"sift.effect.duration",
		metric.WithDescription("Effect operation duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.effectErrors, err = obs.meter.Int64Counter(
		"sift.effect.errors",
		metric.WithDescription("Number of effect operations that panicked"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return obs, nil
}

// OnDispatchStart is called at the top of Dispatch, before the reducer runs
func (o *Observability) OnDispatchStart(ctx context.Context, actionType string) context.Context {
	// Start a span for the dispatch
	ctx, _ = o.tracer.Start(ctx, "sift.dispatch: "+actionType,
		trace.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)

	// Increment dispatch counter
	o.dispatchCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)

	return ctx
}

// OnFieldChanged is called once per changed field with the channel's new version
func (o *Observability) OnFieldChanged(ctx context.Context, id sift.FieldID, version uint64) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("field.changed",
		trace.WithAttributes(
			attribute.String("field.id", string(id)),
			attribute.Int64("field.version", int64(version)),
		),
	)

	o.fieldChanges.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("field.id", string(id)),
		),
	)
}

// OnDispatchComplete is called after the diff finishes
func (o *Observability) OnDispatchComplete(ctx context.Context, duration time.Duration, changed int) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("fields.changed", changed))
	span.SetStatus(codes.Ok, "")
	span.End()

	durationMs := float64(duration.Microseconds()) / 1000.0
	o.dispatchDuration.Record(ctx, durationMs)
}

// OnEffectStart is called in the effect's goroutine before the operation runs
func (o *Observability) OnEffectStart(ctx context.Context, actionType string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "sift.effect: "+actionType,
		trace.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)

	o.effectCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)

	return ctx
}

// OnEffectComplete is called when the operation returns; err is non-nil
// only for a recovered panic
func (o *Observability) OnEffectComplete(ctx context.Context, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)

	durationMs := float64(duration.Microseconds()) / 1000.0
	o.effectDuration.Record(ctx, durationMs)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		o.effectErrors.Add(ctx, 1)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// Ensure Observability implements sift.Observability
var _ sift.Observability = (*Observability)(nil)
