package otlpz

import (
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Temporality is the OTLP aggregation temporality of a sum.
type Temporality int32

// OTLP aggregation temporalities.
const (
	TemporalityUnspecified Temporality = 0
	TemporalityDelta       Temporality = 1
	TemporalityCumulative  Temporality = 2
)

// OTLP status codes. These differ from the ordinals of codes.Code.
const (
	otlpStatusUnset int32 = 0
	otlpStatusOk    int32 = 1
	otlpStatusError int32 = 2
)

// InstrumentationScope names the library producing telemetry.
type InstrumentationScope struct {
	Name    string
	Version string
}

// TracesData is the body of a POST to the traces endpoint.
type TracesData struct {
	ResourceSpans []ResourceSpans `json:"resourceSpans"`
}

// ResourceSpans groups spans emitted by one resource.
type ResourceSpans struct {
	Resource   Resource     `json:"resource"`
	ScopeSpans []ScopeSpans `json:"scopeSpans"`
}

// ScopeSpans groups spans emitted by one instrumentation scope.
type ScopeSpans struct {
	Scope Scope      `json:"scope"`
	Spans []OTLPSpan `json:"spans"`
}

// MetricsData is the body of a POST to the metrics endpoint.
type MetricsData struct {
	ResourceMetrics []ResourceMetrics `json:"resourceMetrics"`
}

// ResourceMetrics groups metrics emitted by one resource.
type ResourceMetrics struct {
	Resource     Resource       `json:"resource"`
	ScopeMetrics []ScopeMetrics `json:"scopeMetrics"`
}

// ScopeMetrics groups metrics emitted by one instrumentation scope.
type ScopeMetrics struct {
	Scope   Scope        `json:"scope"`
	Metrics []OTLPMetric `json:"metrics"`
}

// Resource is the OTLP resource message.
type Resource struct {
	Attributes             []KeyValue `json:"attributes"`
	DroppedAttributesCount uint32     `json:"droppedAttributesCount"`
}

// Scope is the OTLP instrumentation scope message.
type Scope struct {
	Name                   string     `json:"name"`
	Version                string     `json:"version"`
	Attributes             []KeyValue `json:"attributes"`
	DroppedAttributesCount uint32     `json:"droppedAttributesCount"`
}

// KeyValue is one attribute. Values are always strings.
type KeyValue struct {
	Key   string   `json:"key"`
	Value AnyValue `json:"value"`
}

// AnyValue holds an attribute value.
type AnyValue struct {
	StringValue string `json:"stringValue"`
}

// OTLPSpan is the OTLP span message. Timestamps are decimal strings.
type OTLPSpan struct {
	TraceID                string      `json:"traceId"`
	SpanID                 string      `json:"spanId"`
	ParentSpanID           string      `json:"parentSpanId"`
	Name                   string      `json:"name"`
	StartTimeUnixNano      string      `json:"startTimeUnixNano"`
	EndTimeUnixNano        string      `json:"endTimeUnixNano"`
	Kind                   int32       `json:"kind"`
	Attributes             []KeyValue  `json:"attributes"`
	Events                 []OTLPEvent `json:"events"`
	TraceState             string      `json:"traceState"`
	Flags                  uint32      `json:"flags"`
	DroppedAttributesCount uint32      `json:"droppedAttributesCount"`
	DroppedEventsCount     uint32      `json:"droppedEventsCount"`
	Links                  []OTLPLink  `json:"links"`
	DroppedLinksCount      uint32      `json:"droppedLinksCount"`
	Status                 OTLPStatus  `json:"status"`
}

// OTLPEvent is the OTLP span event message.
type OTLPEvent struct {
	Name         string     `json:"name"`
	TimeUnixNano string     `json:"timeUnixNano"`
	Attributes   []KeyValue `json:"attributes"`
}

// OTLPLink is always empty; links are never recorded.
type OTLPLink struct{}

// OTLPStatus is the OTLP status message.
type OTLPStatus struct {
	Message string `json:"message"`
	Code    int32  `json:"code"`
}

// OTLPMetric is an OTLP metric carrying a sum.
type OTLPMetric struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Sum         OTLPSum `json:"sum"`
}

// OTLPSum is the OTLP sum aggregation.
type OTLPSum struct {
	AggregationTemporality Temporality       `json:"aggregationTemporality"`
	IsMonotonic            bool              `json:"isMonotonic"`
	DataPoints             []NumberDataPoint `json:"dataPoints"`
}

// NumberDataPoint is one sum sample. AsDouble carries the integer value of
// the instrument.
type NumberDataPoint struct {
	Attributes        []KeyValue `json:"attributes"`
	StartTimeUnixNano string     `json:"startTimeUnixNano"`
	TimeUnixNano      string     `json:"timeUnixNano"`
	AsDouble          int64      `json:"asDouble"`
}

// EncodeAttributes converts an attribute map to OTLP key/values sorted by key.
// The result is never nil so it encodes as [] rather than null.
func EncodeAttributes(attrs map[Tag]string) []KeyValue {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyValue{Key: k, Value: AnyValue{StringValue: attrs[k]}})
	}
	return out
}

// EncodeSpan maps a completed span to its OTLP form.
func EncodeSpan(s Span) OTLPSpan {
	events := make([]OTLPEvent, 0, len(s.Events))
	for _, e := range s.Events {
		events = append(events, OTLPEvent{
			Name:         e.Name,
			TimeUnixNano: unixNano(e.Time),
			Attributes:   EncodeAttributes(e.Attributes),
		})
	}

	return OTLPSpan{
		TraceID:                s.TraceID,
		SpanID:                 s.SpanID,
		ParentSpanID:           s.ParentID,
		Name:                   s.Name,
		StartTimeUnixNano:      unixNano(s.StartTime),
		EndTimeUnixNano:        unixNano(s.EndTime),
		Kind:                   encodeKind(s.Kind),
		Attributes:             EncodeAttributes(s.Attributes),
		Events:                 events,
		TraceState:             s.TraceState,
		Flags:                  uint32(s.Flags),
		DroppedAttributesCount: s.DroppedAttributes,
		DroppedEventsCount:     s.DroppedEvents,
		Links:                  []OTLPLink{},
		DroppedLinksCount:      s.DroppedLinks,
		Status:                 OTLPStatus{Message: s.Status.Message, Code: encodeStatusCode(s.Status.Code)},
	}
}

// EncodeMetric maps an instrument snapshot to its OTLP form.
func EncodeMetric(m Metric) OTLPMetric {
	temporality, monotonic := TemporalityDelta, false
	if m.Kind == MetricKindCounter {
		temporality, monotonic = TemporalityCumulative, true
	}

	return OTLPMetric{
		Name:        m.Name,
		Description: m.Description,
		Unit:        m.Unit,
		Sum: OTLPSum{
			AggregationTemporality: temporality,
			IsMonotonic:            monotonic,
			DataPoints: []NumberDataPoint{{
				Attributes:        EncodeAttributes(m.Attributes),
				StartTimeUnixNano: unixNano(m.StartTime),
				TimeUnixNano:      unixNano(m.Time),
				AsDouble:          m.Value,
			}},
		},
	}
}

// NewTracesData wraps spans in a single resource and scope.
func NewTracesData(resource map[Tag]string, scope InstrumentationScope, spans ...Span) TracesData {
	encoded := make([]OTLPSpan, 0, len(spans))
	for i := range spans {
		encoded = append(encoded, EncodeSpan(spans[i]))
	}

	return TracesData{
		ResourceSpans: []ResourceSpans{{
			Resource: encodeResource(resource),
			ScopeSpans: []ScopeSpans{{
				Scope: encodeScope(scope),
				Spans: encoded,
			}},
		}},
	}
}

// NewMetricsData wraps metric snapshots in a single resource and scope.
func NewMetricsData(resource map[Tag]string, scope InstrumentationScope, metrics ...Metric) MetricsData {
	encoded := make([]OTLPMetric, 0, len(metrics))
	for i := range metrics {
		encoded = append(encoded, EncodeMetric(metrics[i]))
	}

	return MetricsData{
		ResourceMetrics: []ResourceMetrics{{
			Resource: encodeResource(resource),
			ScopeMetrics: []ScopeMetrics{{
				Scope:   encodeScope(scope),
				Metrics: encoded,
			}},
		}},
	}
}

func encodeResource(attrs map[Tag]string) Resource {
	return Resource{Attributes: EncodeAttributes(attrs)}
}

func encodeScope(scope InstrumentationScope) Scope {
	return Scope{Name: scope.Name, Version: scope.Version, Attributes: []KeyValue{}}
}

func encodeKind(kind trace.SpanKind) int32 {
	if kind < trace.SpanKindUnspecified || kind > trace.SpanKindConsumer {
		return int32(trace.SpanKindUnspecified)
	}
	return int32(kind)
}

func encodeStatusCode(code codes.Code) int32 {
	switch code {
	case codes.Ok:
		return otlpStatusOk
	case codes.Error:
		return otlpStatusError
	default:
		return otlpStatusUnset
	}
}

// unixNano renders t as decimal nanoseconds since the epoch. A zero time
// renders as "0".
func unixNano(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}
