package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/storage"
)

const (
	keyLen = 20 // [series hash (8)][received_at (8)][sequence (4)]

	// slowOperation is the threshold above which scans are logged
	slowOperation = 5 * time.Second
)

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db     *badger.DB
	seq    atomic.Uint32
	logger *zap.Logger
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly default)
	MaxMemoryMB int64

	// Logger for slow scans (nil = no logging)
	Logger *zap.Logger
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// BadgerDB defaults: 64 MB memtable, 5 x 64 MB = 320 MB total
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	}

	// Block and index caches are unbounded unless set
	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20) // 64 MB value log files instead of 2 GB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Storage{db: db, logger: logger}, nil
}

// Write stores an event in BadgerDB.
// The context bounds how long the caller waits for the write.
func (s *Storage) Write(ctx context.Context, event storage.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	key := makeKey(event.Series(), event.ReceivedAt, s.seq.Add(1))

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// List retrieves the events of one series, newest first.
func (s *Storage) List(ctx context.Context, q storage.Query) ([]storage.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type listResult struct {
		events []storage.Event
		err    error
	}
	done := make(chan listResult, 1)

	go func() {
		var res listResult
		res.err = s.db.View(func(txn *badger.Txn) error {
			events, err := s.scanSeries(ctx, txn, q)
			res.events = events
			return err
		})
		done <- res
	}()

	select {
	case res := <-done:
		return res.events, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("list operation cancelled: %w", ctx.Err())
	}
}

func (s *Storage) scanSeries(ctx context.Context, txn *badger.Txn, q storage.Query) ([]storage.Event, error) {
	start := time.Now()
	prefix := seriesPrefix(q.Series)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	opts.PrefetchSize = 100

	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xFF}, keyLen-len(prefix))...)
	if !q.End.IsZero() {
		seek = makeKey(q.Series, q.End, math.MaxUint32)
	}

	var (
		results   []storage.Event
		iterCount int
	)
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		iterCount++
		if iterCount%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		item := it.Item()
		if !q.Start.IsZero() && receivedAt(item.Key()).Before(q.Start) {
			break
		}

		var e storage.Event
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}

		// also guards against series hash collisions
		if !q.Matches(e) {
			continue
		}

		results = append(results, e)
		if q.Limit > 0 && len(results) >= q.Limit {
			break
		}
	}

	if elapsed := time.Since(start); elapsed > slowOperation {
		s.logger.Warn("slow event scan",
			zap.String("series", q.Series.String()),
			zap.Duration("elapsed", elapsed),
			zap.Int("iterations", iterCount),
			zap.Int("results", len(results)))
	}

	return results, nil
}

// Delete removes events received before the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.deleteBefore(ctx, before)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delete operation cancelled: %w", ctx.Err())
	}
}

func (s *Storage) deleteBefore(ctx context.Context, before time.Time) error {
	var keysToDelete [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			item := it.Item()
			if receivedAt(item.Key()).Before(before) {
				keysToDelete = append(keysToDelete, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(keysToDelete) == 0 {
		return nil
	}

	// a write batch splits large deletions over several transactions
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keysToDelete {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
	}
	return wb.Flush()
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection.
// discardRatio: run GC if this fraction of file can be discarded (0.5 = 50%)
// Returns badger.ErrNoRewrite when there was nothing to collect.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type statsResult struct {
		stats *storage.Stats
		err   error
	}
	done := make(chan statsResult, 1)

	go func() {
		var res statsResult
		stats := &storage.Stats{}

		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			series := make(map[uint64]struct{})
			var iterCount int

			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}

				key := it.Item().Key()
				stats.TotalEvents++
				series[binary.BigEndian.Uint64(key[0:8])] = struct{}{}

				ts := receivedAt(key)
				if stats.OldestEvent.IsZero() || ts.Before(stats.OldestEvent) {
					stats.OldestEvent = ts
				}
				if stats.NewestEvent.IsZero() || ts.After(stats.NewestEvent) {
					stats.NewestEvent = ts
				}
			}

			stats.TotalSeries = uint64(len(series))
			return nil
		})

		if res.err == nil {
			lsmSize, vlogSize := s.db.Size()
			stats.SizeBytes = uint64(lsmSize + vlogSize)
		}

		res.stats = stats
		done <- res
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("stats operation cancelled: %w", ctx.Err())
	}
}

// seriesPrefix is the xxhash of the canonical series key.
func seriesPrefix(series storage.Series) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(series.String()))
	return prefix
}

// makeKey creates a key that sorts by series, then receive time.
func makeKey(series storage.Series, ts time.Time, seq uint32) []byte {
	key := make([]byte, keyLen)
	copy(key[0:8], seriesPrefix(series))
	binary.BigEndian.PutUint64(key[8:16], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint32(key[16:20], seq)
	return key
}

// receivedAt extracts the receive time from a storage key
func receivedAt(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[8:16])))
}
