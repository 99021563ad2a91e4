// Package otlpz is a small tracing and metrics library that speaks OTLP/JSON
// over HTTP.
//
// otlpz records spans and simple instruments in-process and ships them to an
// OpenTelemetry collector without pulling in the full OpenTelemetry SDK. Every
// completed span is exported on its own; there is no sampling, batching or
// retry.
//
// Core Components:
//   - Tracer: owns the exporter, resource, scope and ID pools.
//   - ActiveSpan: a span that is still running; safe for concurrent use.
//   - SpanBuilder: fluent configuration for a span before it starts.
//   - Counter, Gauge: atomic instruments uploaded on demand.
//   - Exporter: one HTTP POST per upload.
//   - Executor: runs detached span exports.
//
// Basic Usage:
//
//	tracer, err := otlpz.NewTracer(
//		"http://localhost:4318/v1/traces",
//		"http://localhost:4318/v1/metrics",
//		"checkout",
//	)
//	if err != nil {
//		return err
//	}
//	defer tracer.Close(context.Background())
//
//	ctx, span := tracer.Start(ctx, "handle-order")
//	defer span.End()
//
//	span.SetAttribute("order.id", "123")
//
//	// Children find their parent through ctx.
//	_, child := tracer.Span("charge-card").WithKind(trace.SpanKindClient).Start(ctx)
//	defer child.End()
//
// Context Propagation:
//
// The current span travels in context.Context. A child started from a context
// inherits the trace ID and records the parent's span ID; the parent context
// is never modified, so finishing a child cannot disturb its siblings.
//
// Export:
//
// End freezes the span and hands it to the tracer's Executor. The caller is
// not blocked. The returned Completion reports the export outcome for callers
// that care; failures are also logged. Call Tracer.Close to drain in-flight
// exports before exit.
//
// Logging:
//
// NewLogHandler wraps any slog.Handler. Records logged with a span-carrying
// context are attached to that span as events.
package otlpz

// Version is reported as telemetry.sdk.version and as the default scope
// version.
const Version = "0.1.0"

// ScopeName is the default instrumentation scope name.
const ScopeName = "github.com/zoobzio/otlpz"

// Key represents a span operation name.
type Key = string

// Tag represents a span attribute key.
type Tag = string
