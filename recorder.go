package otlpz

import (
	"maps"
	"sync"
)

// Recorder keeps completed spans in memory. Attach it to a tracer to observe
// exactly what gets exported, in completion order.
// Safe for concurrent use by multiple goroutines.
type Recorder struct {
	spans []Span
	mu    sync.Mutex
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{spans: make([]Span, 0, 8)}
}

// Attach registers the recorder as a completion handler on tracer and returns
// the handler ID for Tracer.RemoveHandler.
func (r *Recorder) Attach(tracer *Tracer) uint64 {
	return tracer.OnSpanComplete(r.Record)
}

// Record stores a deep copy of span.
func (r *Recorder) Record(span Span) {
	span = copySpan(span)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, span)
}

// Spans returns a copy of the recorded spans without clearing them.
func (r *Recorder) Spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Span, len(r.spans))
	for i := range r.spans {
		result[i] = copySpan(r.spans[i])
	}
	return result
}

// Export returns the recorded spans and clears the recorder.
func (r *Recorder) Export() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.spans) == 0 {
		return nil
	}
	result := r.spans
	r.spans = make([]Span, 0, 8)
	return result
}

// Count returns the number of recorded spans.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spans)
}

// Reset discards every recorded span.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = r.spans[:0]
}

// copySpan deep-copies the maps and event slice so the copy shares nothing
// with the original.
func copySpan(s Span) Span {
	s.Attributes = maps.Clone(s.Attributes)
	if s.Events != nil {
		events := make([]Event, len(s.Events))
		for i, e := range s.Events {
			e.Attributes = maps.Clone(e.Attributes)
			events[i] = e
		}
		s.Events = events
	}
	return s
}
