package otlpz

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LogLevelKey is the event attribute holding the level of a log record
// attached to a span.
const LogLevelKey = "log.level"

// Span is the frozen record of a completed span. It is what completion
// handlers receive and what gets encoded for export.
//
//nolint:govet // Field order follows the OTLP span message
type Span struct {
	Attributes        map[Tag]string
	Events            []Event
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
	TraceID           string
	SpanID            string
	ParentID          string
	Name              string
	TraceState        string
	Status            Status
	Kind              trace.SpanKind
	Flags             trace.TraceFlags
	DroppedAttributes uint32
	DroppedEvents     uint32
	DroppedLinks      uint32
}

// IsRoot reports whether the span has no parent.
func (s Span) IsRoot() bool { return s.ParentID == "" }

// Event is a timestamped annotation on a span, such as a log record.
type Event struct {
	Attributes map[Tag]string
	Time       time.Time
	Name       string
}

// Status is the outcome of a span.
type Status struct {
	Message string
	Code    codes.Code
}

// ActiveSpan is a span that has started and not yet ended.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability
type ActiveSpan struct {
	tracer     *Tracer
	sc         SpanContext
	parent     SpanContext
	name       string
	kind       trace.SpanKind
	start      time.Time
	fixed      map[Tag]string // code location and goroutine, set once at start
	mu         sync.Mutex     // Protects everything below.
	attributes map[Tag]string
	events     []Event
	status     Status
	completion *Completion
}

// SetAttribute records key=value on the span. The last write for a key wins.
// No-op if the span has ended.
func (a *ActiveSpan) SetAttribute(key Tag, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completion != nil {
		return
	}
	if a.attributes == nil {
		a.attributes = make(map[Tag]string)
	}
	a.attributes[key] = value
}

// SetAttributes records typed attributes. Values are stored in their string
// form; OTLP export carries every attribute as a stringValue.
func (a *ActiveSpan) SetAttributes(kv ...attribute.KeyValue) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completion != nil {
		return
	}
	if a.attributes == nil {
		a.attributes = make(map[Tag]string, len(kv))
	}
	for _, attr := range kv {
		a.attributes[string(attr.Key)] = attr.Value.Emit()
	}
}

// GetAttribute returns a user attribute set on the span.
func (a *ActiveSpan) GetAttribute(key Tag) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	value, ok := a.attributes[key]
	return value, ok
}

// SetStatus replaces the span status. No-op if the span has ended.
func (a *ActiveSpan) SetStatus(code codes.Code, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completion != nil {
		return
	}
	a.status = Status{Code: code, Message: message}
}

// AddEvent appends a named event stamped with the tracer clock.
func (a *ActiveSpan) AddEvent(name string, kv ...attribute.KeyValue) {
	attrs := make(map[Tag]string, len(kv))
	for _, attr := range kv {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}
	a.pushEvent(Event{Name: name, Time: a.tracer.clock.Now(), Attributes: attrs})
}

// RecordLog attaches a log record to the span. The message becomes the event
// name and the level is stored under log.level.
func (a *ActiveSpan) RecordLog(level slog.Level, msg string, attrs map[Tag]string) {
	event := Event{
		Name:       msg,
		Time:       a.tracer.clock.Now(),
		Attributes: make(map[Tag]string, len(attrs)+1),
	}
	maps.Copy(event.Attributes, attrs)
	event.Attributes[LogLevelKey] = level.String()
	a.pushEvent(event)
}

func (a *ActiveSpan) pushEvent(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completion != nil {
		return
	}
	a.events = append(a.events, event)
}

// SpanContext returns the identity of this span.
func (a *ActiveSpan) SpanContext() SpanContext { return a.sc }

// TraceID returns the hex trace ID of this span.
func (a *ActiveSpan) TraceID() string { return a.sc.TraceID.String() }

// SpanID returns the hex span ID of this span.
func (a *ActiveSpan) SpanID() string { return a.sc.SpanID.String() }

// ParentID returns the hex span ID of the parent, or "" for a root span.
func (a *ActiveSpan) ParentID() string {
	if !a.parent.SpanID.IsValid() {
		return ""
	}
	return a.parent.SpanID.String()
}

// Name returns the operation name.
func (a *ActiveSpan) Name() string { return a.name }

// IsRecording reports whether the span still accepts attributes and events.
func (a *ActiveSpan) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completion == nil
}

// Context creates a new context with this span embedded.
// The returned context can be used to start child spans.
func (a *ActiveSpan) Context(parent context.Context) context.Context {
	return ContextWithSpan(parent, a)
}

// End freezes the span and schedules its export. It never blocks on the
// network. The returned Completion resolves once the collector has answered.
// Safe to call multiple times - later calls return the first Completion.
func (a *ActiveSpan) End() *Completion {
	a.mu.Lock()
	if a.completion != nil {
		c := a.completion
		a.mu.Unlock()
		return c
	}

	end := a.tracer.clock.Now()
	if end.Before(a.start) {
		end = a.start
	}
	span := a.snapshotLocked(end)
	c := newCompletion()
	a.completion = c
	a.mu.Unlock()

	a.tracer.complete(span, c)
	return c
}

// EndAndWait ends the span and waits for its export to finish.
func (a *ActiveSpan) EndAndWait(ctx context.Context) error {
	return a.End().Wait(ctx)
}

// snapshotLocked builds the frozen record. Fixed attributes go in first so a
// user attribute with the same key replaces them.
func (a *ActiveSpan) snapshotLocked(end time.Time) Span {
	attrs := make(map[Tag]string, len(a.fixed)+len(a.attributes))
	maps.Copy(attrs, a.fixed)
	maps.Copy(attrs, a.attributes)

	var events []Event
	if len(a.events) > 0 {
		events = make([]Event, len(a.events))
		copy(events, a.events)
	}

	return Span{
		TraceID:    a.TraceID(),
		SpanID:     a.SpanID(),
		ParentID:   a.ParentID(),
		Name:       a.name,
		Kind:       a.kind,
		StartTime:  a.start,
		EndTime:    end,
		Duration:   end.Sub(a.start),
		Flags:      trace.FlagsSampled,
		Attributes: attrs,
		Events:     events,
		Status:     a.status,
	}
}

// Completion reports the outcome of one span export.
type Completion struct {
	err  error
	done chan struct{}
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) finish(err error) {
	c.err = err
	close(c.done)
}

// Done is closed once the export has finished.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the export error after Done is closed, nil before.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the export finishes or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
