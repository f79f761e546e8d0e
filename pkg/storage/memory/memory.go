package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brightfish/bluecanary/pkg/storage"
)

// Storage stores events in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	events []storage.Event
	mu     sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		events: make([]storage.Event, 0, 1024),
	}
}

// Write stores an event in memory
func (s *Storage) Write(ctx context.Context, event storage.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// List retrieves events matching the query, newest first
func (s *Storage) List(ctx context.Context, q storage.Query) ([]storage.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var results []storage.Event
	for _, e := range s.events {
		if q.Matches(e) {
			results = append(results, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ReceivedAt.After(results[j].ReceivedAt)
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Delete removes events received before the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]storage.Event, 0, len(s.events))
	for _, e := range s.events {
		if !e.ReceivedAt.Before(before) {
			kept = append(kept, e)
		}
	}

	s.events = kept
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		TotalEvents: uint64(len(s.events)),
	}

	if len(s.events) == 0 {
		return stats, nil
	}

	// Count unique series and find min/max timestamps in single pass
	series := make(map[storage.Series]struct{})
	oldest := s.events[0].ReceivedAt
	newest := s.events[0].ReceivedAt

	for _, e := range s.events {
		series[e.Series()] = struct{}{}

		if e.ReceivedAt.Before(oldest) {
			oldest = e.ReceivedAt
		}
		if e.ReceivedAt.After(newest) {
			newest = e.ReceivedAt
		}
	}

	stats.TotalSeries = uint64(len(series))
	stats.OldestEvent = oldest
	stats.NewestEvent = newest

	// Rough size estimate (each event ~200 bytes)
	stats.SizeBytes = uint64(len(s.events)) * 200

	return stats, nil
}
