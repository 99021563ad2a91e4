// Package integration exercises otlpz end to end against an in-process OTLP
// collector.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/otlpz"
)

// Collector is an OTLP/HTTP receiver that decodes every document it is sent.
//
//nolint:govet // Field alignment optimized for test helper readability
type Collector struct {
	server  *httptest.Server
	t       *testing.T
	spans   []otlpz.OTLPSpan
	metrics []otlpz.OTLPMetric
	headers []http.Header
	status  int
	mu      sync.Mutex
}

// NewCollector starts a collector that is shut down when t ends.
func NewCollector(t *testing.T) *Collector {
	t.Helper()

	c := &Collector{t: t, status: http.StatusOK}
	c.server = httptest.NewServer(http.HandlerFunc(c.handle))
	t.Cleanup(c.server.Close)
	return c
}

func (c *Collector) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.headers = append(c.headers, r.Header.Clone())
	if c.status != http.StatusOK {
		w.WriteHeader(c.status)
		_, _ = io.WriteString(w, "collector unavailable")
		return
	}

	switch r.URL.Path {
	case "/v1/traces":
		var doc otlpz.TracesData
		if err := json.Unmarshal(body, &doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rs := range doc.ResourceSpans {
			for _, ss := range rs.ScopeSpans {
				c.spans = append(c.spans, ss.Spans...)
			}
		}
	case "/v1/metrics":
		var doc otlpz.MetricsData
		if err := json.Unmarshal(body, &doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rm := range doc.ResourceMetrics {
			for _, sm := range rm.ScopeMetrics {
				c.metrics = append(c.metrics, sm.Metrics...)
			}
		}
	default:
		http.NotFound(w, r)
	}
}

// Fail makes the collector answer every request with status.
func (c *Collector) Fail(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// URL returns the collector base URL.
func (c *Collector) URL() string { return c.server.URL }

// Tracer returns a tracer pointed at this collector and closed when t ends.
func (c *Collector) Tracer(service string, opts ...otlpz.Option) *otlpz.Tracer {
	c.t.Helper()

	base := []otlpz.Option{otlpz.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	tracer, err := otlpz.NewTracer(c.URL()+"/v1/traces", c.URL()+"/v1/metrics", service, append(base, opts...)...)
	if err != nil {
		c.t.Fatalf("NewTracer: %v", err)
	}
	c.t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Close(ctx)
	})
	return tracer
}

// Spans returns every span received so far.
func (c *Collector) Spans() []otlpz.OTLPSpan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]otlpz.OTLPSpan(nil), c.spans...)
}

// Metrics returns every metric received so far.
func (c *Collector) Metrics() []otlpz.OTLPMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]otlpz.OTLPMetric(nil), c.metrics...)
}

// Headers returns the headers of every request received so far.
func (c *Collector) Headers() []http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]http.Header(nil), c.headers...)
}

// Flush waits until tracer has no export in flight.
func (c *Collector) Flush(tracer *otlpz.Tracer) {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracer.Executor().Wait(ctx); err != nil {
		c.t.Fatalf("Timeout flushing exports: %v", err)
	}
}

// WaitForSpans polls until at least expected spans arrived or timeout passes.
func (c *Collector) WaitForSpans(expected int, timeout time.Duration) []otlpz.OTLPSpan {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if spans := c.Spans(); len(spans) >= expected {
			return spans
		}
		<-ticker.C
	}

	spans := c.Spans()
	c.t.Errorf("Timeout waiting for spans: expected %d, got %d", expected, len(spans))
	return spans
}

// SpanNamed returns the first received span called name.
func (c *Collector) SpanNamed(name string) *otlpz.OTLPSpan {
	c.t.Helper()

	spans := c.Spans()
	for i := range spans {
		if spans[i].Name == name {
			return &spans[i]
		}
	}
	c.t.Errorf("Span named '%s' not found", name)
	return nil
}

// AssertParentChild verifies that childName is a direct child of parentName.
func (c *Collector) AssertParentChild(parentName, childName string) {
	c.t.Helper()

	parent, child := c.SpanNamed(parentName), c.SpanNamed(childName)
	if parent == nil || child == nil {
		return
	}
	if child.ParentSpanID != parent.SpanID {
		c.t.Errorf("Parent-child relationship broken: %s is not parent of %s. Child parentSpanId=%s, Parent spanId=%s",
			parentName, childName, child.ParentSpanID, parent.SpanID)
	}
	if child.TraceID != parent.TraceID {
		c.t.Errorf("Trace ID mismatch: parent=%s, child=%s", parent.TraceID, child.TraceID)
	}
}

// Attr returns the value of attribute key, or "" when absent.
func Attr(attrs []otlpz.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value.StringValue
		}
	}
	return ""
}

// SpanTree represents a hierarchical view of received spans.
type SpanTree struct {
	Span     otlpz.OTLPSpan
	Children []*SpanTree
}

// BuildSpanTree constructs a tree from a flat span list.
func BuildSpanTree(spans []otlpz.OTLPSpan) []*SpanTree {
	nodes := make(map[string]*SpanTree, len(spans))
	for i := range spans {
		nodes[spans[i].SpanID] = &SpanTree{Span: spans[i]}
	}

	var roots []*SpanTree
	for i := range spans {
		node := nodes[spans[i].SpanID]
		if spans[i].ParentSpanID == "" {
			roots = append(roots, node)
		} else if parent, ok := nodes[spans[i].ParentSpanID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots
}

// PrintSpanTree formats a span tree for failure messages.
func PrintSpanTree(trees []*SpanTree) string {
	var sb strings.Builder
	for _, tree := range trees {
		printTreeNode(&sb, tree, 0)
	}
	return sb.String()
}

func printTreeNode(sb *strings.Builder, node *SpanTree, depth int) {
	fmt.Fprintf(sb, "%s%s [%s]\n", strings.Repeat("  ", depth), node.Span.Name, node.Span.SpanID)
	for _, child := range node.Children {
		printTreeNode(sb, child, depth+1)
	}
}
