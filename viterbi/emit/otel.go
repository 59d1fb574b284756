package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Msg (e.g., "step_start", "step_end", "hmm_break")
//   - Attributes: runID, step, and all event.Meta fields
//   - Status: set to error if event.Meta["error"] exists
//
// Usage:
//
//	tracer := otel.Tracer("viterbi")
//	emitter := emit.NewOTelEmitter(tracer)
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates a new OTelEmitter from an OpenTelemetry tracer,
// e.g. otel.Tracer("viterbi").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates an OpenTelemetry span for the event.
//
// The span is started and ended immediately, since a decoder event
// represents a point in time rather than a duration in progress.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	o.addStandardAttributes(span, event)
	o.addMetadataAttributes(span, event.Meta)

	if err, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, err)
		span.RecordError(fmt.Errorf("%s", err))
	}
}

// EmitBatch creates a span per event, in order.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)

		o.addStandardAttributes(span, event)
		o.addMetadataAttributes(span, event.Meta)

		if err, ok := event.Meta["error"].(string); ok {
			span.SetStatus(codes.Error, err)
			span.RecordError(fmt.Errorf("%s", err))
		}

		span.End()
	}

	return nil
}

// Flush forces export of all pending spans via the global tracer provider's
// ForceFlush, if the configured provider supports it.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}

	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}

	return nil
}

func (o *OTelEmitter) addStandardAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("viterbi.run_id", event.RunID),
		attribute.Int("viterbi.step", event.Step),
	)
}

// addMetadataAttributes converts event metadata to span attributes,
// namespaced under viterbi.meta.*.
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	if meta == nil {
		return
	}

	for key, value := range meta {
		attrKey := "viterbi.meta." + key

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
