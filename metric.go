package otlpz

import (
	"context"
	"maps"
	"sync/atomic"
	"time"
)

// MetricKind selects how an instrument is aggregated on the wire.
type MetricKind int

const (
	// MetricKindCounter is monotonic and cumulative since construction.
	MetricKindCounter MetricKind = iota
	// MetricKindGauge is a point-in-time value.
	MetricKindGauge
)

// Metric is a snapshot of an instrument taken for one upload.
type Metric struct {
	Attributes  map[Tag]string
	StartTime   time.Time
	Time        time.Time
	Name        string
	Description string
	Unit        string
	Value       int64
	Kind        MetricKind
}

// instrument holds what Counter and Gauge share. The value is only touched
// atomically.
type instrument struct {
	tracer      *Tracer
	attributes  map[Tag]string
	created     time.Time
	name        string
	description string
	unit        string
	value       atomic.Int64
}

func (m *instrument) init(tracer *Tracer, name, description, unit string) {
	m.tracer = tracer
	m.name = name
	m.description = description
	m.unit = unit
	m.attributes = make(map[Tag]string)
	m.created = tracer.clock.Now()
}

func (m *instrument) snapshot(kind MetricKind, start, now time.Time) Metric {
	return Metric{
		Name:        m.name,
		Description: m.description,
		Unit:        m.unit,
		Value:       m.value.Load(),
		Attributes:  maps.Clone(m.attributes),
		Kind:        kind,
		StartTime:   start,
		Time:        now,
	}
}

// Counter is a monotonic, cumulative instrument. Its value survives uploads.
// Safe for concurrent use once configured.
type Counter struct {
	instrument
}

// NewCounter creates a counter reporting through tracer. Its cumulative
// interval starts now.
func NewCounter(tracer *Tracer, name, description, unit string) *Counter {
	c := &Counter{}
	c.init(tracer, name, description, unit)
	return c
}

// WithAttribute adds a fixed attribute to every data point. Call it only
// while building the counter, before it is shared.
func (c *Counter) WithAttribute(key Tag, value string) *Counter {
	c.attributes[key] = value
	return c
}

// Inc adds one.
func (c *Counter) Inc() { c.Add(1) }

// Add adds n. The value wraps on int64 overflow.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current total.
func (c *Counter) Value() int64 { return c.value.Load() }

// Snapshot captures the counter for export. The start time is the
// construction time.
func (c *Counter) Snapshot() Metric {
	return c.snapshot(MetricKindCounter, c.created, c.tracer.clock.Now())
}

// Upload sends the current total and returns the collector's verdict.
func (c *Counter) Upload(ctx context.Context) error {
	return c.tracer.UploadMetrics(ctx, c.Snapshot())
}

// Gauge is a point-in-time instrument. Each upload reports the last value
// set. Safe for concurrent use once configured.
type Gauge struct {
	instrument
}

// NewGauge creates a gauge reporting through tracer.
func NewGauge(tracer *Tracer, name, description, unit string) *Gauge {
	g := &Gauge{}
	g.init(tracer, name, description, unit)
	return g
}

// WithAttribute adds a fixed attribute to every data point. Call it only
// while building the gauge, before it is shared.
func (g *Gauge) WithAttribute(key Tag, value string) *Gauge {
	g.attributes[key] = value
	return g
}

// Set replaces the value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Value returns the last value set.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Snapshot captures the gauge for export as a zero-length interval ending
// now.
func (g *Gauge) Snapshot() Metric {
	now := g.tracer.clock.Now()
	return g.snapshot(MetricKindGauge, now, now)
}

// Upload sends the current value and returns the collector's verdict.
func (g *Gauge) Upload(ctx context.Context) error {
	return g.tracer.UploadMetrics(ctx, g.Snapshot())
}
