package batch

import (
	"github.com/brightfish/bluecanary/pkg/sdk/metrics"
)

// Batch holds the metrics waiting for the next outgoing event.
//
// A Batch has a single owner and is not safe for concurrent use. The request
// builder drains it every time it builds a request, so metrics never carry
// over from one event to the next.
type Batch struct {
	metrics []metrics.Metric
}

// New creates an empty batch with room for capacity metrics.
func New(capacity int) *Batch {
	return &Batch{
		metrics: make([]metrics.Metric, 0, capacity),
	}
}

// Add appends a metric, preserving insertion order.
func (b *Batch) Add(m metrics.Metric) {
	b.metrics = append(b.metrics, m)
}

// Len returns the number of pending metrics.
func (b *Batch) Len() int {
	return len(b.metrics)
}

// Metrics returns a copy of the pending metrics.
func (b *Batch) Metrics() []metrics.Metric {
	out := make([]metrics.Metric, len(b.metrics))
	copy(out, b.metrics)
	return out
}

// Drain returns the pending metrics and empties the batch.
func (b *Batch) Drain() []metrics.Metric {
	if len(b.metrics) == 0 {
		return nil
	}

	out := make([]metrics.Metric, len(b.metrics))
	copy(out, b.metrics)
	b.metrics = b.metrics[:0]
	return out
}

// Clear drops every pending metric.
func (b *Batch) Clear() {
	b.metrics = b.metrics[:0]
}
