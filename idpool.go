package otlpz

import (
	"crypto/rand"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// NewTraceID returns a random, non-zero 128-bit trace ID.
// Its String form is 32 lowercase hex characters.
func NewTraceID() trace.TraceID {
	var id trace.TraceID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// NewSpanID returns a random, non-zero 64-bit span ID.
// Its String form is 16 lowercase hex characters.
func NewSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// IDPool manages a pool of pre-generated IDs to amortize crypto/rand overhead.
type IDPool[T any] struct {
	factory func() T
	ids     chan T
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool creates a new ID pool with the specified capacity.
func NewIDPool[T any](capacity int, factory func() T) *IDPool[T] {
	pool := &IDPool[T]{
		ids:     make(chan T, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// Get retrieves an ID from the pool or generates one if pool is empty.
func (p *IDPool[T]) Get() T {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly (fallback for burst load).
		return p.factory()
	}
}

// refill keeps the pool topped up in the background.
func (p *IDPool[T]) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
			select {
			case p.ids <- p.factory():
			case <-p.stopCh:
				return
			}
		}
	}
}

// Close stops the refill goroutine. Get keeps working afterwards.
func (p *IDPool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}
