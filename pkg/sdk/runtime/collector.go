// Package runtime turns Go runtime statistics into Blue Canary metrics.
package runtime

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/sdk/metrics"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/sdk/transport"
)

// DefaultInterval is the heartbeat interval used when none is given.
const DefaultInterval = 15 * time.Second

// Recorder receives metrics for the next event. *sdk.Client implements it.
type Recorder interface {
	Metric(key string, value float64, unit string, typ metrics.Type) error
}

// Client sends heartbeat events. *sdk.Client implements it.
type Client interface {
	Recorder
	Ok(ctx context.Context, message string, p params.Params) (*transport.Response, error)
}

// Collect snapshots Go runtime statistics.
func Collect() []metrics.Metric {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	out := []metrics.Metric{
		metrics.MustNew("go_goroutines", float64(runtime.NumGoroutine()), "", metrics.IntType),
		metrics.MustNew("go_cpu_count", float64(runtime.NumCPU()), "", metrics.IntType),
		metrics.MustNew("go_memory_heap_bytes", float64(m.HeapAlloc), "B", metrics.IntType),
		metrics.MustNew("go_memory_stack_bytes", float64(m.StackInuse), "B", metrics.IntType),
		metrics.MustNew("go_memory_sys_bytes", float64(m.Sys), "B", metrics.IntType),
		metrics.MustNew("go_gc_count", float64(m.NumGC), "", metrics.IntType),
	}

	if m.NumGC > 0 {
		// cumulative pause time
		out = append(out, metrics.MustNew("go_gc_pause_seconds", float64(m.PauseTotalNs)/1e9, "s", metrics.FloatType))
	}

	return out
}

// Attach adds a runtime snapshot to the metrics of r's next event.
func Attach(r Recorder) error {
	for _, m := range Collect() {
		if err := r.Metric(m.Key(), m.Value(), m.Unit(), m.Type()); err != nil {
			return err
		}
	}
	return nil
}

// Collector periodically sends an ok heartbeat carrying runtime metrics.
// It must be the only user of its client while running.
type Collector struct {
	client   Client
	interval time.Duration
	logger   *zap.Logger
}

// NewCollector creates a new runtime heartbeat collector.
func NewCollector(client Client, interval time.Duration, logger *zap.Logger) *Collector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		client:   client,
		interval: interval,
		logger:   logger,
	}
}

// Start sends a heartbeat right away and then once per interval until ctx
// is done.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.beat(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.beat(ctx)
		}
	}
}

func (c *Collector) beat(ctx context.Context) {
	if err := Attach(c.client); err != nil {
		c.logger.Warn("failed to collect runtime metrics", zap.Error(err))
		return
	}
	if _, err := c.client.Ok(ctx, "runtime heartbeat", nil); err != nil && ctx.Err() == nil {
		c.logger.Warn("failed to send runtime heartbeat", zap.Error(err))
	}
}
