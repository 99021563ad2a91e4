package otlpz

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const bundleKey bundleKeyType = "otlpz"

// SpanContext identifies one span for propagation purposes. It is a value
// type and never changes once created.
type SpanContext struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
}

// IsValid reports whether both IDs are set.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// contextBundle carries the current span context and, when the span was
// started in this process, the span that receives log events.
type contextBundle struct {
	sc   SpanContext
	span *ActiveSpan
}

// ContextWithSpan returns a copy of parent in which span is current.
func ContextWithSpan(parent context.Context, span *ActiveSpan) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if span == nil {
		return parent
	}
	return context.WithValue(parent, bundleKey, &contextBundle{sc: span.sc, span: span})
}

// ContextWithSpanContext returns a copy of parent whose current span context
// is sc. Spans started from it become children of sc, but log events have no
// span to land on until one is started.
func ContextWithSpanContext(parent context.Context, sc SpanContext) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if !sc.IsValid() {
		return parent
	}
	return context.WithValue(parent, bundleKey, &contextBundle{sc: sc})
}

// SpanFromContext returns the active span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *ActiveSpan {
	if b := bundleFrom(ctx); b != nil {
		return b.span
	}
	return nil
}

// SpanContextFromContext returns the span context carried by ctx.
func SpanContextFromContext(ctx context.Context) (SpanContext, bool) {
	if b := bundleFrom(ctx); b != nil {
		return b.sc, true
	}
	return SpanContext{}, false
}

func bundleFrom(ctx context.Context) *contextBundle {
	if ctx == nil {
		return nil
	}
	b, _ := ctx.Value(bundleKey).(*contextBundle)
	return b
}
