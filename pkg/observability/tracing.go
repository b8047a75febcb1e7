package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/metrics"
)

// TracerName is the instrumentation scope used for pipeline spans
const TracerName = "github.com/ajitpratap0/ingest"

// StageTracer wraps each pipeline stage in a span and a latency observation.
type StageTracer struct {
	tracer  trace.Tracer
	metrics *metrics.Collector
}

// NewStageTracer returns a StageTracer. A nil tracer uses the global provider;
// a nil collector records no metrics.
func NewStageTracer(tracer trace.Tracer, collector *metrics.Collector) *StageTracer {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &StageTracer{tracer: tracer, metrics: collector}
}

// Start opens a span named after stage. Callers must End the returned span.
func (st *StageTracer) Start(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return st.tracer.Start(ctx, "ingest."+stage, trace.WithAttributes(attrs...))
}

// Trace runs fn inside a span for stage and records its duration. The error
// from fn is returned unchanged.
func (st *StageTracer) Trace(ctx context.Context, stage string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := st.Start(ctx, stage, attrs...)
	defer span.End()

	timer := metrics.NewTimer()
	err := fn(ctx)
	st.metrics.ObserveStage(stage, timer.Stop())

	EndWithError(span, err)
	return err
}

// EndWithError marks span as failed when err is non-nil. It does not end the
// span.
func EndWithError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.type", string(errors.TypeOf(err))))
	span.SetStatus(codes.Error, err.Error())
}
