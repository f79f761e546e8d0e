package monitor

import (
	"sync"
	"time"

	"github.com/brightfish/bluecanary/pkg/config"
)

// maxConsecutiveErrors is how many failed runs in a row are tolerated
const maxConsecutiveErrors = 3

// RetentionMonitor tracks the health of the retention job.
type RetentionMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
	lastCutoff        time.Time
}

// RecordSuccess records a successful retention run that pruned events
// received before cutoff.
func (rm *RetentionMonitor) RecordSuccess(cutoff time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastSuccess = time.Now()
	rm.lastAttempt = rm.lastSuccess
	rm.lastCutoff = cutoff
	rm.consecutiveErrors = 0
	rm.lastError = ""
}

// RecordFailure records a failed retention run.
func (rm *RetentionMonitor) RecordFailure(err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastAttempt = time.Now()
	rm.consecutiveErrors++
	if err != nil {
		rm.lastError = err.Error()
	}
}

// IsHealthy returns true if retention is working properly.
// Unhealthy conditions:
//   - Never succeeded
//   - Haven't succeeded in two retention intervals
//   - More than 3 consecutive failures
func (rm *RetentionMonitor) IsHealthy() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.healthyLocked()
}

func (rm *RetentionMonitor) healthyLocked() bool {
	if rm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(rm.lastSuccess) > 2*config.RetentionInterval {
		return false
	}
	return rm.consecutiveErrors <= maxConsecutiveErrors
}

// RetentionStatus is the retention section of the health check.
type RetentionStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	PrunedBefore      string `json:"pruned_before,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current retention status for health checks.
func (rm *RetentionMonitor) Status() RetentionStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	status := RetentionStatus{
		Healthy: rm.healthyLocked(),
	}

	if !rm.lastSuccess.IsZero() {
		status.LastSuccess = rm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(rm.lastSuccess).Round(time.Second).String()
		status.PrunedBefore = rm.lastCutoff.Format(time.RFC3339)
	}

	if !rm.lastAttempt.IsZero() {
		status.LastAttempt = rm.lastAttempt.Format(time.RFC3339)
	}

	if rm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = rm.consecutiveErrors
		status.LastError = rm.lastError
	}

	return status
}
