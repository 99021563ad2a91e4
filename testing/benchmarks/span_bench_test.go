// Package benchmarks measures the hot paths of otlpz.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zoobzio/otlpz"
)

func newBenchTracer(b *testing.B) *otlpz.Tracer {
	b.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	b.Cleanup(server.Close)

	tracer, err := otlpz.NewTracer(server.URL+"/v1/traces", server.URL+"/v1/metrics", "bench",
		otlpz.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = tracer.Close(ctx)
	})
	return tracer
}

// BenchmarkSpanStart measures span creation without export.
func BenchmarkSpanStart(b *testing.B) {
	tracer := newBenchTracer(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.Start(ctx, "start-span")
		_ = span
	}
}

// BenchmarkSpanStartParallel measures span creation from many goroutines,
// which contend on the ID pools.
func BenchmarkSpanStartParallel(b *testing.B) {
	tracer := newBenchTracer(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, span := tracer.Start(ctx, "parallel-span")
			_ = span
		}
	})
}

// BenchmarkContextPropagation measures child creation under a parent.
func BenchmarkContextPropagation(b *testing.B) {
	tracer := newBenchTracer(b)
	parentCtx, _ := tracer.Start(context.Background(), "parent")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, child := tracer.Start(parentCtx, "child")
		_ = child
	}
}

// BenchmarkSetAttribute measures attribute writes across sizes.
func BenchmarkSetAttribute(b *testing.B) {
	for _, count := range []int{1, 5, 10, 20} {
		keys := make([]string, count)
		for j := range keys {
			keys[j] = fmt.Sprintf("key_%d", j)
		}

		b.Run(fmt.Sprintf("attrs-%d", count), func(b *testing.B) {
			tracer := newBenchTracer(b)
			_, span := tracer.Start(context.Background(), "tagged-span")

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for _, k := range keys {
					span.SetAttribute(k, "value")
				}
			}
		})
	}
}

// BenchmarkEncodeSpan measures building and marshaling one traces document.
func BenchmarkEncodeSpan(b *testing.B) {
	now := time.Now()
	span := otlpz.Span{
		TraceID:   "0af7651916cd43dd8448eb211c80319c",
		SpanID:    "b7ad6b7169203331",
		Name:      "encode",
		StartTime: now,
		EndTime:   now.Add(time.Millisecond),
		Attributes: map[otlpz.Tag]string{
			"code.filepath": "/src/app/main.go",
			"code.lineno":   "42",
			"thread.id":     "1",
			"thread.name":   "main",
		},
		Events: []otlpz.Event{{Name: "hello", Time: now, Attributes: map[otlpz.Tag]string{otlpz.LogLevelKey: "INFO"}}},
	}
	resource := map[otlpz.Tag]string{"service.name": "bench"}
	scope := otlpz.InstrumentationScope{Name: otlpz.ScopeName, Version: otlpz.Version}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := json.Marshal(otlpz.NewTracesData(resource, scope, span)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExportRoundTrip measures End through the collector's answer.
func BenchmarkExportRoundTrip(b *testing.B) {
	tracer := newBenchTracer(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.Start(ctx, "round-trip")
		if err := span.EndAndWait(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLogHandler measures a log record routed to both an inner handler
// and the active span.
func BenchmarkLogHandler(b *testing.B) {
	tracer := newBenchTracer(b)
	directives, err := otlpz.ParseLevelDirectives("info")
	if err != nil {
		b.Fatal(err)
	}
	logger := slog.New(otlpz.NewLogHandler(slog.NewJSONHandler(io.Discard, nil), directives))
	ctx, _ := tracer.Start(context.Background(), "logging")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.InfoContext(ctx, "request handled", "status", 200)
	}
}

// BenchmarkIDPool compares pooled and direct span ID generation.
func BenchmarkIDPool(b *testing.B) {
	b.Run("pooled", func(b *testing.B) {
		pool := otlpz.NewIDPool(1024, otlpz.NewSpanID)
		defer pool.Close()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = pool.Get()
		}
	})

	b.Run("direct", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = otlpz.NewSpanID()
		}
	})
}
