package otlpz

import (
	"sync"
)

// The registry lets call sites deep inside an application start spans without
// threading a tracer through every signature. Prefer passing the tracer;
// nothing in this package reads the registry.
var registry struct {
	executor *Executor
	tracer   *Tracer
	mu       sync.RWMutex
}

// Register installs the process-wide executor and tracer. It may be called
// once; a second call, or a nil argument, panics.
func Register(executor *Executor, tracer *Tracer) {
	if executor == nil || tracer == nil {
		panic("otlpz: Register called with a nil executor or tracer")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.tracer != nil {
		panic("otlpz: Register called more than once")
	}
	registry.executor = executor
	registry.tracer = tracer
}

// GlobalExecutor returns the registered executor. It panics before Register.
func GlobalExecutor() *Executor {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if registry.executor == nil {
		panic("otlpz: GlobalExecutor called before Register")
	}
	return registry.executor
}

// GlobalTracer returns the registered tracer. It panics before Register.
func GlobalTracer() *Tracer {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if registry.tracer == nil {
		panic("otlpz: GlobalTracer called before Register")
	}
	return registry.tracer
}

// StartSpan returns a builder on the registered tracer.
func StartSpan(name Key) *SpanBuilder {
	return GlobalTracer().Span(name)
}
