package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelObserver implements Observer using OpenTelemetry for traces and metrics.
// This provides automatic integration with OTLP exporters (Jaeger, Tempo, Datadog, etc.).
//
// A run becomes one span; dispatches, rate limits and passes are recorded
// as span events plus metrics.
//
// Example:
//
//	tracer := otel.Tracer("digitsweep")
//	meter := otel.Meter("digitsweep")
//	observer, _ := sweep.NewOTelObserver(tracer, meter)
type OTelObserver struct {
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]trace.Span

	// Metrics
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	rateLimits      metric.Int64Counter
	storeLatency    metric.Float64Histogram
	storeErrors     metric.Int64Counter
}

// NewOTelObserver creates an OpenTelemetry observer.
func NewOTelObserver(tracer trace.Tracer, meter metric.Meter) (*OTelObserver, error) {
	dispatches, err := meter.Int64Counter(
		"digitsweep.dispatches",
		metric.WithDescription("Number of candidates verified and stored"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatches counter: %w", err)
	}

	dispatchLatency, err := meter.Float64Histogram(
		"digitsweep.dispatch.duration",
		metric.WithDescription("Duration of oracle calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch duration histogram: %w", err)
	}

	rateLimits, err := meter.Int64Counter(
		"digitsweep.rate_limits",
		metric.WithDescription("Number of rate-limit responses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit counter: %w", err)
	}

	storeLatency, err := meter.Float64Histogram(
		"digitsweep.store.duration",
		metric.WithDescription("Latency of store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store latency histogram: %w", err)
	}

	storeErrors, err := meter.Int64Counter(
		"digitsweep.store.errors",
		metric.WithDescription("Number of failed store operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store errors counter: %w", err)
	}

	return &OTelObserver{
		tracer:          tracer,
		runs:            make(map[string]trace.Span),
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		rateLimits:      rateLimits,
		storeLatency:    storeLatency,
		storeErrors:     storeErrors,
	}, nil
}

func (o *OTelObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	_, span := o.tracer.Start(ctx, "sweep.run",
		trace.WithTimestamp(event.StartTime),
		trace.WithAttributes(
			attribute.String("run_id", event.RunID),
			attribute.String("mode", event.Mode.String()),
			attribute.Int("workers", event.PartitionCount),
		),
	)
	o.mu.Lock()
	o.runs[event.RunID] = span
	o.mu.Unlock()
}

func (o *OTelObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	o.mu.Lock()
	span, ok := o.runs[event.RunID]
	delete(o.runs, event.RunID)
	o.mu.Unlock()
	if !ok {
		return
	}

	if event.Error != nil {
		span.SetStatus(codes.Error, event.Error.Error())
		span.RecordError(event.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.Int("dispatched", event.Dispatched),
		attribute.Bool("interrupted", event.Interrupted),
	)
	span.End()
}

func (o *OTelObserver) OnDispatch(ctx context.Context, event *DispatchEvent) {
	attrs := []attribute.KeyValue{
		attribute.Int("worker", event.WorkerID),
		attribute.String("outcome", event.Record.Outcome.Short()),
	}
	o.dispatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	o.dispatchLatency.Record(ctx, event.Duration.Seconds(), metric.WithAttributes(attrs...))

	if span := o.runSpan(event.RunID); span != nil {
		span.AddEvent("dispatch", trace.WithAttributes(
			attribute.Int("worker", event.WorkerID),
			attribute.String("candidate", event.Record.Candidate),
			attribute.String("outcome", event.Record.Outcome.Short()),
		))
	}
}

func (o *OTelObserver) OnRateLimited(ctx context.Context, event *RateLimitEvent) {
	o.rateLimits.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("worker", event.WorkerID),
	))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("rate_limited", trace.WithAttributes(
			attribute.String("candidate", event.Candidate),
			attribute.Int("attempt", event.Attempt),
			attribute.String("wait", event.Wait.String()),
		))
	}
}

func (o *OTelObserver) OnStoreOp(ctx context.Context, event *StoreEvent) {
	attrs := metric.WithAttributes(attribute.String("op", event.Op))
	o.storeLatency.Record(ctx, event.Latency.Seconds(), attrs)
	if event.Error != nil {
		o.storeErrors.Add(ctx, 1, attrs)
	}
}

func (o *OTelObserver) OnPassComplete(ctx context.Context, event *PassEvent) {
	if span := o.runSpan(event.RunID); span != nil {
		span.AddEvent("pass_complete", trace.WithTimestamp(time.Now()), trace.WithAttributes(
			attribute.Int("worker", event.WorkerID),
			attribute.Int("pass", event.Pass),
			attribute.Int("dispatched", event.Dispatched),
		))
	}
}

func (o *OTelObserver) runSpan(runID string) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[runID]
}
