package otlpz

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanBuilder collects the configuration of a span before it starts.
// A builder is not safe for concurrent use; each call returns the same
// builder so calls can be chained.
type SpanBuilder struct {
	tracer     *Tracer
	attributes map[Tag]string
	name       string
	status     Status
	kind       trace.SpanKind
}

// WithAttribute sets an initial attribute. The last value for a key wins.
func (b *SpanBuilder) WithAttribute(key Tag, value string) *SpanBuilder {
	if b.attributes == nil {
		b.attributes = make(map[Tag]string)
	}
	b.attributes[key] = value
	return b
}

// WithStatus sets the initial status.
func (b *SpanBuilder) WithStatus(code codes.Code, message string) *SpanBuilder {
	b.status = Status{Code: code, Message: message}
	return b
}

// WithKind sets the span kind. The default is trace.SpanKindInternal.
func (b *SpanBuilder) WithKind(kind trace.SpanKind) *SpanBuilder {
	b.kind = kind
	return b
}

// Start begins the span as a child of whatever span ctx carries.
func (b *SpanBuilder) Start(ctx context.Context) (context.Context, *ActiveSpan) {
	return b.tracer.start(ctx, spanConfig{
		name:       b.name,
		kind:       b.kind,
		status:     b.status,
		attributes: b.attributes,
	})
}
