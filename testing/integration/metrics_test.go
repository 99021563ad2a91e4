package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zoobzio/otlpz"
)

func TestCounterAndGaugeOverTheWire(t *testing.T) {
	collector := NewCollector(t)
	tracer := collector.Tracer("order-service")
	ctx := context.Background()

	orders := otlpz.NewCounter(tracer, "orders_processed", "Number of orders processed", "orders").
		WithAttribute("order.type", "standard")
	queue := otlpz.NewGauge(tracer, "queue_depth", "Orders waiting to be processed", "orders")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orders.Inc()
		}()
	}
	wg.Wait()
	queue.Set(4)

	if err := orders.Upload(ctx); err != nil {
		t.Fatalf("Counter upload: %v", err)
	}
	if err := queue.Upload(ctx); err != nil {
		t.Fatalf("Gauge upload: %v", err)
	}

	metrics := collector.Metrics()
	if len(metrics) != 2 {
		t.Fatalf("Expected 2 metrics, got %d", len(metrics))
	}

	counter, gauge := metrics[0], metrics[1]
	if counter.Name != "orders_processed" || counter.Sum.DataPoints[0].AsDouble != 10 {
		t.Errorf("Unexpected counter: %+v", counter)
	}
	if counter.Sum.AggregationTemporality != otlpz.TemporalityCumulative || !counter.Sum.IsMonotonic {
		t.Errorf("Counter must be cumulative and monotonic: %+v", counter.Sum)
	}
	if got := Attr(counter.Sum.DataPoints[0].Attributes, "order.type"); got != "standard" {
		t.Errorf("Expected order.type standard, got %q", got)
	}

	if gauge.Name != "queue_depth" || gauge.Sum.DataPoints[0].AsDouble != 4 {
		t.Errorf("Unexpected gauge: %+v", gauge)
	}
	if gauge.Sum.AggregationTemporality != otlpz.TemporalityDelta || gauge.Sum.IsMonotonic {
		t.Errorf("Gauge must be delta and non-monotonic: %+v", gauge.Sum)
	}
}

func TestMetricUploadReportsCollectorFailure(t *testing.T) {
	collector := NewCollector(t)
	tracer := collector.Tracer("order-service")
	collector.Fail(503)

	c := otlpz.NewCounter(tracer, "orders_failed", "", "")
	c.Add(2)

	err := c.Upload(context.Background())
	if err == nil {
		t.Fatal("Expected an error from a failing collector")
	}
	var perr *otlpz.ProtocolError
	if !errors.As(err, &perr) || perr.StatusCode != 503 {
		t.Errorf("Expected ProtocolError 503, got %v", err)
	}
	if c.Value() != 2 {
		t.Errorf("Failed upload changed the value to %d", c.Value())
	}
}
