package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// TestConcurrentNestedSpans runs nested spans from many goroutines against
// one tracer. Run with -race.
func TestConcurrentNestedSpans(t *testing.T) {
	collector := NewCollector(t)
	tracer := collector.Tracer("race-test-service")

	const (
		goroutines        = 20
		spansPerGoroutine = 10
	)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			for j := 0; j < spansPerGoroutine; j++ {
				ctx1, parent := tracer.Start(context.Background(), "parent")
				_, child := tracer.Start(ctx1, "child")

				parent.SetAttribute("routine", fmt.Sprint(id))
				child.SetAttribute("iteration", fmt.Sprint(j))

				child.End()
				parent.End()
			}
		}(i)
	}
	wg.Wait()

	collector.Flush(tracer)
	spans := collector.Spans()
	if want := goroutines * spansPerGoroutine * 2; len(spans) != want {
		t.Fatalf("Expected %d spans, got %d", want, len(spans))
	}

	trees := BuildSpanTree(spans)
	if len(trees) != goroutines*spansPerGoroutine {
		t.Errorf("Expected %d roots, got %d", goroutines*spansPerGoroutine, len(trees))
	}
	for _, tree := range trees {
		if len(tree.Children) != 1 {
			t.Errorf("Root %s has %d children", tree.Span.SpanID, len(tree.Children))
		}
	}
}
