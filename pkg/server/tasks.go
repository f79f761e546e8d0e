package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/server/monitor"
	"github.com/brightfish/bluecanary/pkg/storage"
	"github.com/brightfish/bluecanary/pkg/storage/badger"
)

// RetentionJob deletes events older than the retention period.
type RetentionJob struct {
	store     storage.Storage
	retention time.Duration
	monitor   *monitor.RetentionMonitor
	logger    *zap.Logger

	maxRetries int
	baseDelay  time.Duration
	now        func() time.Time
}

// NewRetentionJob creates a retention job.
func NewRetentionJob(store storage.Storage, retention time.Duration, m *monitor.RetentionMonitor, logger *zap.Logger) *RetentionJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionJob{
		store:      store,
		retention:  retention,
		monitor:    m,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  30 * time.Second,
		now:        time.Now,
	}
}

// Run prunes once, retrying with exponential backoff (30s, 60s, 120s).
// It gives up early when stop is closed.
func (j *RetentionJob) Run(ctx context.Context, stop <-chan bool) error {
	var err error
	for attempt := 0; attempt <= j.maxRetries; attempt++ {
		if attempt > 0 {
			delay := j.baseDelay * time.Duration(1<<(attempt-1))
			j.logger.Info("retrying retention",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", j.maxRetries+1))
			select {
			case <-time.After(delay):
			case <-stop:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		start := time.Now()
		cutoff := j.now().Add(-j.retention)
		err = j.store.Delete(ctx, cutoff)
		if err == nil {
			j.monitor.RecordSuccess(cutoff)
			j.logger.Info("retention completed",
				zap.Time("cutoff", cutoff),
				zap.Duration("took", time.Since(start).Round(time.Millisecond)))
			return nil
		}

		j.monitor.RecordFailure(err)
		j.logger.Warn("retention failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", j.maxRetries+1))

		if status := j.monitor.Status(); status.ConsecutiveErrors > 3 {
			j.logger.Error("retention keeps failing",
				zap.Int("consecutive_errors", status.ConsecutiveErrors))
		}
	}

	j.logger.Warn("retention gave up, will retry on next schedule",
		zap.Int("attempts", j.maxRetries+1))
	return err
}

// RunRetention runs the retention job on startup and then periodically.
func RunRetention(job *RetentionJob, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.RetentionInterval)
	defer ticker.Stop()

	// Initial run shares the scheduler's lifetime
	job.Run(context.Background(), stop)

	for {
		select {
		case <-ticker.C:
			job.Run(context.Background(), stop)
		case <-stop:
			job.logger.Info("stopping retention scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB value log garbage collection periodically.
// Deleted events only free disk space once their value log file is rewritten.
func RunBadgerGC(store storage.Storage, logger *zap.Logger, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		logger.Info("storage is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	logger.Info("BadgerDB GC scheduler started", zap.Duration("interval", config.BadgerGCInterval))

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// Rewrite a value log file when half of it is garbage
			if err := badgerStore.RunGC(0.5); err != nil {
				logger.Debug("GC found nothing to rewrite",
					zap.Duration("took", time.Since(start).Round(time.Millisecond)))
			} else {
				logger.Info("GC reclaimed disk space",
					zap.Duration("took", time.Since(start).Round(time.Millisecond)))
			}
		case <-stop:
			logger.Info("stopping BadgerDB GC scheduler")
			return
		}
	}
}
