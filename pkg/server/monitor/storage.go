package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brightfish/bluecanary/pkg/config"
)

// StorageMonitor tracks the size of the receiver's data directory. Usage is
// cached so the directory is not walked on every ingested event.
type StorageMonitor struct {
	dataDir       string
	maxBytes      int64
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// NewStorageMonitor creates a new storage monitor. A maxBytes of zero
// disables the limit.
func NewStorageMonitor(dataDir string, maxBytes int64) *StorageMonitor {
	return &StorageMonitor{
		dataDir:       dataDir,
		maxBytes:      maxBytes,
		cacheDuration: config.StorageUsageCacheDuration,
	}
}

// GetUsage returns current storage usage in bytes (cached).
func (sm *StorageMonitor) GetUsage() (int64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < sm.cacheDuration {
		return sm.cachedUsage, nil
	}

	usage, err := calculateDirSize(sm.dataDir)
	if err != nil {
		return 0, err
	}

	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// GetLimit returns the configured storage limit in bytes.
func (sm *StorageMonitor) GetLimit() int64 {
	return sm.maxBytes
}

// calculateDirSize walks path and sums the disk usage of its files.
func calculateDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		actualSize, err := getActualFileSize(filePath, info)
		if err != nil {
			size += info.Size()
		} else {
			size += actualSize
		}
		return nil
	})
	return size, err
}
