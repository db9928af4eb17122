package output

import (
	"context"
	"math"

	"github.com/mrzor/lwes-filter-listener/internal/lwes"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys added to every event span.
const (
	AttrEventName      = "lwes.event.name"
	AttrAttributeCount = "lwes.event.attribute_count"
	attrPrefix         = "lwes.attr."
)

// SpanSink records each event as a zero-length consumer span.
type SpanSink struct {
	ctx    context.Context
	tracer trace.Tracer
}

// NewSpanSink creates a SpanSink. Spans are started from ctx.
func NewSpanSink(ctx context.Context, tracer trace.Tracer) *SpanSink {
	return &SpanSink{ctx: ctx, tracer: tracer}
}

// Write implements Sink.
func (s *SpanSink) Write(ev *lwes.Event) error {
	_, span := s.tracer.Start(s.ctx, ev.Name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(SpanAttributes(ev)...),
	)
	span.End()
	return nil
}

// SpanAttributes converts the attributes of ev to OpenTelemetry attributes.
// Integers that fit in an int64 stay numeric; the rest use their text form.
func SpanAttributes(ev *lwes.Event) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, ev.Len()+2)
	attrs = append(attrs,
		attribute.String(AttrEventName, ev.Name),
		attribute.Int(AttrAttributeCount, ev.Len()),
	)

	for key, v := range ev.All() {
		k := attrPrefix + key
		switch v := v.(type) {
		case lwes.UInt16:
			attrs = append(attrs, attribute.Int64(k, int64(v)))
		case lwes.Int16:
			attrs = append(attrs, attribute.Int64(k, int64(v)))
		case lwes.UInt32:
			attrs = append(attrs, attribute.Int64(k, int64(v)))
		case lwes.Int32:
			attrs = append(attrs, attribute.Int64(k, int64(v)))
		case lwes.Int64:
			attrs = append(attrs, attribute.Int64(k, int64(v)))
		case lwes.UInt64:
			if v <= math.MaxInt64 {
				attrs = append(attrs, attribute.Int64(k, int64(v)))
			} else {
				attrs = append(attrs, attribute.String(k, lwes.FormatValue(v)))
			}
		case lwes.Boolean:
			attrs = append(attrs, attribute.Bool(k, bool(v)))
		default:
			attrs = append(attrs, attribute.String(k, lwes.FormatValue(v)))
		}
	}

	return attrs
}
