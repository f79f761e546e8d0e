package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brightfish/bluecanary/pkg/config"
)

func TestRetentionMonitor_RecordSuccess(t *testing.T) {
	rm := &RetentionMonitor{}
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rm.RecordSuccess(cutoff)

	status := rm.Status()
	assert.True(t, status.Healthy)
	assert.Zero(t, status.ConsecutiveErrors)
	assert.Empty(t, status.LastError)
	assert.Equal(t, "2026-01-01T00:00:00Z", status.PrunedBefore)
	assert.NotEmpty(t, status.LastSuccess)
	assert.NotEmpty(t, status.TimeSinceSuccess)
}

func TestRetentionMonitor_RecordFailure(t *testing.T) {
	rm := &RetentionMonitor{}
	rm.RecordFailure(errors.New("disk full"))

	status := rm.Status()
	assert.False(t, status.Healthy)
	assert.Equal(t, 1, status.ConsecutiveErrors)
	assert.Equal(t, "disk full", status.LastError)
	assert.NotEmpty(t, status.LastAttempt)
	assert.Empty(t, status.LastSuccess)
}

func TestRetentionMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*RetentionMonitor)
		expected bool
	}{
		{
			name:     "never succeeded",
			setup:    func(*RetentionMonitor) {},
			expected: false,
		},
		{
			name: "recent success",
			setup: func(rm *RetentionMonitor) {
				rm.RecordSuccess(time.Now())
			},
			expected: true,
		},
		{
			name: "stale success",
			setup: func(rm *RetentionMonitor) {
				rm.mu.Lock()
				rm.lastSuccess = time.Now().Add(-3 * config.RetentionInterval)
				rm.mu.Unlock()
			},
			expected: false,
		},
		{
			name: "recovered after failures",
			setup: func(rm *RetentionMonitor) {
				rm.RecordFailure(errors.New("error 1"))
				rm.RecordFailure(errors.New("error 2"))
				rm.RecordSuccess(time.Now())
			},
			expected: true,
		},
		{
			name: "too many consecutive errors",
			setup: func(rm *RetentionMonitor) {
				rm.RecordSuccess(time.Now())
				for i := 0; i <= maxConsecutiveErrors; i++ {
					rm.RecordFailure(errors.New("boom"))
				}
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := &RetentionMonitor{}
			tt.setup(rm)
			assert.Equal(t, tt.expected, rm.IsHealthy())
		})
	}
}
