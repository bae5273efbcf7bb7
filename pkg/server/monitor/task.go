package monitor

import (
	"sync"
	"time"
)

// MaxConsecutiveFailures is the failure streak after which a task reports
// unhealthy.
const MaxConsecutiveFailures = 3

// TaskMonitor tracks the health of a periodic background task, such as the
// cache value-log GC or the idle-session sweep.
type TaskMonitor struct {
	name  string
	stale time.Duration
	now   func() time.Time

	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	runs              int
	consecutiveErrors int
	lastError         string
}

// NewTaskMonitor creates a monitor for the named task. A task whose last
// success is older than stale is unhealthy (0 disables the check).
func NewTaskMonitor(name string, stale time.Duration) *TaskMonitor {
	return &TaskMonitor{name: name, stale: stale, now: time.Now}
}

// RecordSuccess records a successful run.
func (tm *TaskMonitor) RecordSuccess() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	now := tm.now()
	tm.lastSuccess = now
	tm.lastAttempt = now
	tm.runs++
	tm.consecutiveErrors = 0
	tm.lastError = ""
}

// RecordFailure records a failed run.
func (tm *TaskMonitor) RecordFailure(err error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.lastAttempt = tm.now()
	tm.runs++
	tm.consecutiveErrors++
	if err != nil {
		tm.lastError = err.Error()
	}
}

// IsHealthy reports whether the task is working. A task that has not run yet
// is healthy.
func (tm *TaskMonitor) IsHealthy() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.healthy()
}

func (tm *TaskMonitor) healthy() bool {
	if tm.consecutiveErrors > MaxConsecutiveFailures {
		return false
	}
	if tm.runs == 0 {
		return true
	}
	if tm.lastSuccess.IsZero() {
		return tm.consecutiveErrors == 0
	}
	if tm.stale > 0 && tm.now().Sub(tm.lastSuccess) > tm.stale {
		return false
	}
	return true
}

// TaskStatus is the health check view of a task.
type TaskStatus struct {
	Name              string `json:"name"`
	Healthy           bool   `json:"healthy"`
	Runs              int    `json:"runs"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current task status for health checks.
func (tm *TaskMonitor) Status() TaskStatus {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	status := TaskStatus{
		Name:    tm.name,
		Healthy: tm.healthy(),
		Runs:    tm.runs,
	}
	if !tm.lastSuccess.IsZero() {
		status.LastSuccess = tm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = tm.now().Sub(tm.lastSuccess).String()
	}
	if !tm.lastAttempt.IsZero() {
		status.LastAttempt = tm.lastAttempt.Format(time.RFC3339)
	}
	if tm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = tm.consecutiveErrors
		status.LastError = tm.lastError
	}
	return status
}
