package otlpz

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

// capturedRequest is one POST seen by the fake collector.
type capturedRequest struct {
	Header http.Header
	Host   string
	Path   string
	Body   []byte
}

// fakeCollector is an httptest server that records every request and answers
// with a configurable status.
type fakeCollector struct {
	server   *httptest.Server
	requests []capturedRequest
	status   int
	reply    string
	mu       sync.Mutex
}

func newFakeCollector(t *testing.T) *fakeCollector {
	t.Helper()

	c := &fakeCollector{status: http.StatusOK}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		c.mu.Lock()
		c.requests = append(c.requests, capturedRequest{
			Header: r.Header.Clone(),
			Host:   r.Host,
			Path:   r.URL.Path,
			Body:   body,
		})
		status, reply := c.status, c.reply
		c.mu.Unlock()

		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *fakeCollector) respond(status int, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status, c.reply = status, reply
}

func (c *fakeCollector) tracesURL() string  { return c.server.URL + "/v1/traces" }
func (c *fakeCollector) metricsURL() string { return c.server.URL + "/v1/metrics" }

func (c *fakeCollector) all() []capturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedRequest(nil), c.requests...)
}

// spans decodes every span posted to the traces endpoint.
func (c *fakeCollector) spans(t *testing.T) []OTLPSpan {
	t.Helper()

	var out []OTLPSpan
	for _, req := range c.all() {
		if req.Path != "/v1/traces" {
			continue
		}
		var doc TracesData
		require.NoError(t, json.Unmarshal(req.Body, &doc))
		for _, rs := range doc.ResourceSpans {
			for _, ss := range rs.ScopeSpans {
				out = append(out, ss.Spans...)
			}
		}
	}
	return out
}

// metrics decodes every metric posted to the metrics endpoint.
func (c *fakeCollector) metrics(t *testing.T) []OTLPMetric {
	t.Helper()

	var out []OTLPMetric
	for _, req := range c.all() {
		if req.Path != "/v1/metrics" {
			continue
		}
		var doc MetricsData
		require.NoError(t, json.Unmarshal(req.Body, &doc))
		for _, rm := range doc.ResourceMetrics {
			for _, sm := range rm.ScopeMetrics {
				out = append(out, sm.Metrics...)
			}
		}
	}
	return out
}

// fakeClock is the part of the clockz fake clock the tests drive.
type fakeClock interface {
	clockz.Clock
	Advance(d time.Duration)
}

var testEpoch = time.Date(2025, 2, 1, 17, 37, 43, 16000000, time.UTC)

// newTestTracer returns a tracer wired to a fresh fake collector and a fake
// clock. The tracer is closed at cleanup.
func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *fakeCollector, fakeClock) {
	t.Helper()

	collector := newFakeCollector(t)
	var clock fakeClock = clockz.NewFakeClockAt(testEpoch)
	base := []Option{
		WithClock(clock),
		WithIDPoolSize(4),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}

	tracer, err := NewTracer(collector.tracesURL(), collector.metricsURL(), "test-service", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Close(ctx)
	})
	return tracer, collector, clock
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
