package storage

import (
	"context"
	"time"
)

// Storage defines the interface for event storage backends.
// Implementations: memory (testing), badger (production)
type Storage interface {
	// Write stores a single event
	Write(ctx context.Context, event Event) error

	// List retrieves events of one series, newest first
	List(ctx context.Context, q Query) ([]Event, error)

	// Delete removes events received before the given time
	Delete(ctx context.Context, before time.Time) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// Event is a Blue Canary event as received by the server.
type Event struct {
	APIVersion   string    `json:"api_version"`
	UUID         string    `json:"uuid"`
	Counter      string    `json:"counter"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientName   string    `json:"client_name,omitempty"`
	StatusCode   int       `json:"status_code"`
	StatusRemark string    `json:"status_remark,omitempty"`
	GeneratedAt  string    `json:"generated_at,omitempty"`
	Metrics      []Metric  `json:"metrics,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Metric is a metric attached to a stored event.
type Metric struct {
	Key   string  `json:"key"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Series identifies the events of one counter of one application.
type Series struct {
	UUID    string
	Counter string
}

// String returns the canonical series key.
func (s Series) String() string {
	return s.UUID + "/" + s.Counter
}

// Series returns the series e belongs to.
func (e Event) Series() Series {
	return Series{UUID: e.UUID, Counter: e.Counter}
}

// Query specifies which events to retrieve
type Query struct {
	// Series to list (required)
	Series Series

	// Time range on ReceivedAt (zero = unbounded)
	Start time.Time
	End   time.Time

	// Only events with status_code >= MinStatus
	MinStatus int

	// Limit number of results (0 = no limit)
	Limit int
}

// Matches reports whether e satisfies the query filters.
func (q Query) Matches(e Event) bool {
	if e.UUID != q.Series.UUID || e.Counter != q.Series.Counter {
		return false
	}
	if !q.Start.IsZero() && e.ReceivedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.ReceivedAt.After(q.End) {
		return false
	}
	return e.StatusCode >= q.MinStatus
}

// Stats provides storage health and usage info
type Stats struct {
	// Total events stored
	TotalEvents uint64 `json:"total_events"`

	// Unique series (uuid + counter combinations)
	TotalSeries uint64 `json:"total_series"`

	// Storage size in bytes
	SizeBytes uint64 `json:"size_bytes"`

	// Oldest and newest receive times
	OldestEvent time.Time `json:"oldest_event"`
	NewestEvent time.Time `json:"newest_event"`
}
