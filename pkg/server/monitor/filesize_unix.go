//go:build !windows

package monitor

import (
	"os"
	"syscall"
)

// getActualFileSize returns allocated disk usage on Unix systems.
// Stat blocks are 512 bytes regardless of the filesystem block size.
func getActualFileSize(_ string, info os.FileInfo) (int64, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.Size(), nil
	}
	return stat.Blocks * 512, nil
}
