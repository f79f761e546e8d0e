package ingest

import (
	"sync"
	"time"

	"github.com/brightfish/bluecanary/pkg/storage"
)

// SeriesTracker tracks unique uuid/counter pairs to enforce cardinality limits.
// Series not seen for a day are forgotten so memory stays bounded.
type SeriesTracker struct {
	mu sync.RWMutex

	// countersPerApp tracks unique counters per application uuid
	countersPerApp map[string]int

	// seriesSeen tracks which series we've already counted
	seriesSeen map[storage.Series]time.Time

	// lastCleanup tracks when we last cleaned up old series
	lastCleanup time.Time

	now func() time.Time
}

const (
	// Forget series not seen in the last 24 hours
	seriesRetentionPeriod = 24 * time.Hour

	// Run cleanup every hour
	cleanupInterval = 1 * time.Hour
)

// NewSeriesTracker creates a new series tracker
func NewSeriesTracker() *SeriesTracker {
	return &SeriesTracker{
		countersPerApp: make(map[string]int),
		seriesSeen:     make(map[storage.Series]time.Time),
		lastCleanup:    time.Now(),
		now:            time.Now,
	}
}

// Check reports whether accepting an event of s would exceed a limit
func (c *SeriesTracker) Check(s storage.Series) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupOldSeriesLocked()

	if _, exists := c.seriesSeen[s]; exists {
		return nil
	}

	if len(c.seriesSeen) >= MaxUniqueSeries {
		return ErrCardinalityLimit
	}

	if c.countersPerApp[s.UUID] >= MaxCountersPerApp {
		return ErrAppCardinalityLimit
	}

	return nil
}

// Record marks a series as seen.
// Should be called after Check passes and the event is written.
func (c *SeriesTracker) Record(s storage.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.seriesSeen[s]
	c.seriesSeen[s] = c.now()

	if !existed {
		c.countersPerApp[s.UUID]++
	}
}

// cleanupOldSeriesLocked forgets series not seen in seriesRetentionPeriod.
// MUST be called with lock held
func (c *SeriesTracker) cleanupOldSeriesLocked() {
	now := c.now()
	if now.Sub(c.lastCleanup) < cleanupInterval {
		return
	}

	c.lastCleanup = now
	cutoff := now.Add(-seriesRetentionPeriod)

	for s, lastSeen := range c.seriesSeen {
		if lastSeen.Before(cutoff) {
			delete(c.seriesSeen, s)
			if c.countersPerApp[s.UUID]--; c.countersPerApp[s.UUID] <= 0 {
				delete(c.countersPerApp, s.UUID)
			}
		}
	}
}

// Stats returns current cardinality statistics
func (c *SeriesTracker) Stats() CardinalityStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Find the app with the most counters
	var maxApp string
	var maxCount int
	for app, count := range c.countersPerApp {
		if count > maxCount {
			maxCount = count
			maxApp = app
		}
	}

	return CardinalityStats{
		TotalSeries:      len(c.seriesSeen),
		UniqueApps:       len(c.countersPerApp),
		MaxCountersApp:   maxApp,
		MaxCountersCount: maxCount,
		SeriesLimit:      MaxUniqueSeries,
		PerAppLimit:      MaxCountersPerApp,
		UtilizationPct:   float64(len(c.seriesSeen)) / float64(MaxUniqueSeries) * 100,
	}
}

// CardinalityStats provides cardinality usage information
type CardinalityStats struct {
	TotalSeries      int     `json:"total_series"`
	UniqueApps       int     `json:"unique_apps"`
	MaxCountersApp   string  `json:"max_counters_app"`
	MaxCountersCount int     `json:"max_counters_count"`
	SeriesLimit      int     `json:"series_limit"`
	PerAppLimit      int     `json:"per_app_limit"`
	UtilizationPct   float64 `json:"utilization_percent"`
}
