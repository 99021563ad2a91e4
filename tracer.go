package otlpz

import (
	"bytes"
	"context"
	"log/slog"
	"maps"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// SpanHandler is called when a span completes.
type SpanHandler func(span Span)

type handlerEntry struct {
	handler SpanHandler
	id      uint64
}

// Option configures a Tracer.
type Option func(*options)

type options struct {
	clock      clockz.Clock
	logger     *slog.Logger
	client     *http.Client
	executor   *Executor
	resource   map[Tag]string
	scope      InstrumentationScope
	headers    string
	idPoolSize int
}

// WithHeaders sets static request headers from a "k1=v1,k2=v2" string.
func WithHeaders(headers string) Option {
	return func(o *options) { o.headers = headers }
}

// WithClock injects the clock used for span and metric timestamps.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger sets the logger used for export diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient replaces the HTTP client used by the exporter.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// WithExecutor shares an executor between tracers. A tracer given an
// executor does not close it.
func WithExecutor(executor *Executor) Option {
	return func(o *options) { o.executor = executor }
}

// WithScope overrides the instrumentation scope.
func WithScope(name, version string) Option {
	return func(o *options) { o.scope = InstrumentationScope{Name: name, Version: version} }
}

// WithResourceAttribute adds an attribute to the resource.
func WithResourceAttribute(key Tag, value string) Option {
	return func(o *options) { o.resource[key] = value }
}

// WithIDPoolSize sets how many IDs each pool keeps ready.
func WithIDPoolSize(size int) Option {
	return func(o *options) { o.idPoolSize = size }
}

// Tracer creates spans and ships them to a collector.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	handlers     []handlerEntry
	panicHook    func(handlerID uint64, r interface{})
	exporter     *Exporter
	executor     *Executor
	ownsExecutor bool
	logger       *slog.Logger
	clock        clockz.Clock
	traceIDPool  *IDPool[trace.TraceID]
	spanIDPool   *IDPool[trace.SpanID]
	resource     map[Tag]string
	scope        InstrumentationScope
	serviceName  string
	handlersLock sync.RWMutex
	nextID       atomic.Uint64
}

// NewTracer validates the endpoints and header string and builds a tracer.
// Nothing touches the network until the first export.
func NewTracer(tracesEndpoint, metricsEndpoint, serviceName string, opts ...Option) (*Tracer, error) {
	o := options{
		clock:      clockz.RealClock,
		resource:   make(map[Tag]string),
		scope:      InstrumentationScope{Name: ScopeName, Version: Version},
		idPoolSize: runtime.NumCPU() * 100,
	}
	for _, opt := range opts {
		opt(&o)
	}

	headers, err := ParseHeaders(o.headers)
	if err != nil {
		return nil, err
	}
	exporter, err := NewExporter(tracesEndpoint, metricsEndpoint, headers, o.client)
	if err != nil {
		return nil, err
	}

	t := &Tracer{
		exporter:    exporter,
		executor:    o.executor,
		logger:      o.logger,
		clock:       o.clock,
		scope:       o.scope,
		serviceName: serviceName,
		handlers:    make([]handlerEntry, 0),
	}
	if t.executor == nil {
		t.executor = NewExecutor(0)
		t.ownsExecutor = true
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	t.resource = map[Tag]string{
		string(semconv.ServiceNameKey):          serviceName,
		string(semconv.ServiceInstanceIDKey):    uuid.NewString(),
		string(semconv.TelemetrySDKNameKey):     "opentelemetry",
		string(semconv.TelemetrySDKLanguageKey): "go",
		string(semconv.TelemetrySDKVersionKey):  Version,
	}
	maps.Copy(t.resource, o.resource)

	t.traceIDPool = NewIDPool(o.idPoolSize, NewTraceID)
	t.spanIDPool = NewIDPool(o.idPoolSize, NewSpanID)

	return t, nil
}

// ServiceName returns the service.name reported by this tracer.
func (t *Tracer) ServiceName() string { return t.serviceName }

// Resource returns a copy of the resource attributes.
func (t *Tracer) Resource() map[Tag]string { return maps.Clone(t.resource) }

// Scope returns the instrumentation scope.
func (t *Tracer) Scope() InstrumentationScope { return t.scope }

// Exporter returns the exporter used by this tracer.
func (t *Tracer) Exporter() *Exporter { return t.exporter }

// Executor returns the executor running span exports.
func (t *Tracer) Executor() *Executor { return t.executor }

// OnSpanComplete registers a handler called synchronously from End, before
// the span is handed to the exporter.
func (t *Tracer) OnSpanComplete(handler SpanHandler) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.handlers = append(t.handlers, handlerEntry{id: id, handler: handler})
	return id
}

// RemoveHandler removes a handler by ID.
func (t *Tracer) RemoveHandler(id uint64) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	// Preserve order
	for i, h := range t.handlers {
		if h.id == id {
			copy(t.handlers[i:], t.handlers[i+1:])
			t.handlers = t.handlers[:len(t.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (t *Tracer) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	t.panicHook = hook
}

// Span returns a builder for a span named name.
func (t *Tracer) Span(name Key) *SpanBuilder {
	return &SpanBuilder{tracer: t, name: name, kind: trace.SpanKindInternal}
}

// Start begins an internal span. If ctx carries a span, the new span is its
// child. The returned context carries the new span.
func (t *Tracer) Start(ctx context.Context, name Key) (context.Context, *ActiveSpan) {
	return t.start(ctx, spanConfig{name: name, kind: trace.SpanKindInternal})
}

type spanConfig struct {
	attributes map[Tag]string
	name       string
	status     Status
	kind       trace.SpanKind
}

// start must be called directly from an exported entry point so the caller
// frame lands at a fixed depth.
func (t *Tracer) start(ctx context.Context, cfg spanConfig) (context.Context, *ActiveSpan) {
	if ctx == nil {
		ctx = context.Background()
	}

	parent, _ := SpanContextFromContext(ctx)
	sc := SpanContext{TraceID: parent.TraceID, SpanID: t.spanIDPool.Get()}
	if !parent.IsValid() {
		parent = SpanContext{}
		sc.TraceID = t.traceIDPool.Get()
	}

	span := &ActiveSpan{
		tracer:     t,
		sc:         sc,
		parent:     parent,
		name:       cfg.name,
		kind:       cfg.kind,
		status:     cfg.status,
		attributes: maps.Clone(cfg.attributes),
		fixed:      callerAttributes(3),
		start:      t.clock.Now(),
	}

	return ContextWithSpan(ctx, span), span
}

// callerAttributes describes the code location skip frames up and the
// goroutine it runs on.
func callerAttributes(skip int) map[Tag]string {
	attrs := make(map[Tag]string, 6)

	if pc, file, line, ok := runtime.Caller(skip); ok {
		attrs[string(semconv.CodeFilepathKey)] = file
		attrs[string(semconv.CodeLineNumberKey)] = strconv.Itoa(line)
		// The runtime does not report columns.
		attrs[string(semconv.CodeColumnKey)] = "0"
		if fn := runtime.FuncForPC(pc); fn != nil {
			attrs[string(semconv.CodeFunctionKey)] = fn.Name()
		}
	}

	id := goroutineID()
	attrs[string(semconv.ThreadIDKey)] = strconv.FormatUint(id, 10)
	if id == 1 {
		attrs[string(semconv.ThreadNameKey)] = "main"
	} else {
		attrs[string(semconv.ThreadNameKey)] = "goroutine-" + strconv.FormatUint(id, 10)
	}
	return attrs
}

// goroutineID parses the "goroutine N [...]" header of the current stack.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// complete runs handlers and schedules the export of a frozen span.
func (t *Tracer) complete(span Span, c *Completion) {
	t.executeHandlers(span)

	data := NewTracesData(t.resource, t.scope, span)
	err := t.executor.Go(func(ctx context.Context) {
		err := t.exporter.UploadTraces(ctx, data)
		if err != nil {
			t.logger.Warn("otlpz: span export failed",
				"span", span.Name,
				"trace_id", span.TraceID,
				"span_id", span.SpanID,
				"error", err)
		}
		c.finish(err)
	})
	if err != nil {
		t.logger.Warn("otlpz: span export not scheduled",
			"span", span.Name,
			"trace_id", span.TraceID,
			"error", err)
		c.finish(err)
	}
}

// executeHandlers calls all registered handlers with the completed span.
func (t *Tracer) executeHandlers(span Span) {
	t.handlersLock.RLock()
	if len(t.handlers) == 0 {
		t.handlersLock.RUnlock()
		return
	}

	handlers := make([]handlerEntry, len(t.handlers))
	copy(handlers, t.handlers)
	t.handlersLock.RUnlock()

	for _, h := range handlers {
		t.safeCall(h, span)
	}
}

func (t *Tracer) safeCall(entry handlerEntry, span Span) {
	defer func() {
		if r := recover(); r != nil {
			if t.panicHook != nil {
				t.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(span)
}

// UploadTraces sends spans wrapped in this tracer's resource and scope.
func (t *Tracer) UploadTraces(ctx context.Context, spans ...Span) error {
	return t.exporter.UploadTraces(ctx, NewTracesData(t.resource, t.scope, spans...))
}

// UploadMetrics sends metric snapshots wrapped in this tracer's resource and
// scope.
func (t *Tracer) UploadMetrics(ctx context.Context, metrics ...Metric) error {
	return t.exporter.UploadMetrics(ctx, NewMetricsData(t.resource, t.scope, metrics...))
}

// Close drops completion handlers, stops the ID pools and waits for in-flight
// exports. A shared executor is drained but left open.
func (t *Tracer) Close(ctx context.Context) error {
	t.handlersLock.Lock()
	t.handlers = nil
	t.handlersLock.Unlock()

	t.traceIDPool.Close()
	t.spanIDPool.Close()

	if t.ownsExecutor {
		return t.executor.Close(ctx)
	}
	return t.executor.Wait(ctx)
}
