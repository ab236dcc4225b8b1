package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guardexec/guardexec/executor"
)

// Metrics is an in-process execution metrics collector. It also
// implements the executor's hook contract, so it can be registered
// directly on a builder and fed by every execution.
type Metrics struct {
	programStats    map[string]*ProgramStats
	totalDuration   int64
	minDuration     int64
	durationCount   int64
	totalExecutions int64
	maxDuration     int64
	successfulExec  int64
	failedExec      int64
	policyDenied    int64
	spawnFailed     int64
	nonZeroExit     int64
	signaled        int64
	canceled        int64
	mu              sync.RWMutex
}

// ProgramStats contains per-program statistics.
type ProgramStats struct {
	LastExecutionAt time.Time
	Program         string
	LastOutcome     string
	TotalExecutions int64
	SuccessfulExec  int64
	FailedExec      int64
	TotalDuration   int64
	AvgDuration     int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		programStats: make(map[string]*ProgramStats),
		minDuration:  -1,
	}
}

// RecordExecution records one execution outcome. result is nil for
// every outcome other than a zero exit, so duration statistics cover
// successful executions only.
func (m *Metrics) RecordExecution(cmd *executor.Command, result *executor.Result, err error) {
	atomic.AddInt64(&m.totalExecutions, 1)

	outcome := executor.Outcome(err)
	switch outcome {
	case "success":
		atomic.AddInt64(&m.successfulExec, 1)
	case "policy_denied":
		atomic.AddInt64(&m.policyDenied, 1)
		atomic.AddInt64(&m.failedExec, 1)
	case "spawn_failed":
		atomic.AddInt64(&m.spawnFailed, 1)
		atomic.AddInt64(&m.failedExec, 1)
	case "non_zero_exit":
		atomic.AddInt64(&m.nonZeroExit, 1)
		atomic.AddInt64(&m.failedExec, 1)
	case "signaled":
		atomic.AddInt64(&m.signaled, 1)
		atomic.AddInt64(&m.failedExec, 1)
	case "canceled":
		atomic.AddInt64(&m.canceled, 1)
		atomic.AddInt64(&m.failedExec, 1)
	default:
		atomic.AddInt64(&m.failedExec, 1)
	}

	if result != nil {
		duration := result.Duration.Nanoseconds()
		atomic.AddInt64(&m.totalDuration, duration)
		atomic.AddInt64(&m.durationCount, 1)

		for {
			old := atomic.LoadInt64(&m.minDuration)
			if old >= 0 && duration >= old {
				break
			}
			if atomic.CompareAndSwapInt64(&m.minDuration, old, duration) {
				break
			}
		}

		for {
			old := atomic.LoadInt64(&m.maxDuration)
			if duration <= old {
				break
			}
			if atomic.CompareAndSwapInt64(&m.maxDuration, old, duration) {
				break
			}
		}
	}

	m.updateProgramStats(cmd.Program, result, outcome)
}

func (m *Metrics) updateProgramStats(program string, result *executor.Result, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.programStats[program]
	if !ok {
		stats = &ProgramStats{Program: program}
		m.programStats[program] = stats
	}

	stats.TotalExecutions++
	stats.LastExecutionAt = time.Now()
	stats.LastOutcome = outcome

	if result != nil {
		stats.TotalDuration += result.Duration.Nanoseconds()
		stats.AvgDuration = stats.TotalDuration / stats.TotalExecutions
	}

	if outcome == "success" {
		stats.SuccessfulExec++
	} else {
		stats.FailedExec++
	}
}

// BeforeExecute implements the executor's hook contract. Metrics only
// observe, so it always allows the command.
func (m *Metrics) BeforeExecute(ctx context.Context, cmd *executor.Command) error {
	return nil
}

// AfterExecute implements the executor's hook contract by recording the
// outcome.
func (m *Metrics) AfterExecute(ctx context.Context, cmd *executor.Command, result *executor.Result, execErr error) {
	m.RecordExecution(cmd, result, execErr)
}

// Snapshot returns a point-in-time copy of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TotalExecutions: atomic.LoadInt64(&m.totalExecutions),
		SuccessfulExec:  atomic.LoadInt64(&m.successfulExec),
		FailedExec:      atomic.LoadInt64(&m.failedExec),
		PolicyDenied:    atomic.LoadInt64(&m.policyDenied),
		SpawnFailed:     atomic.LoadInt64(&m.spawnFailed),
		NonZeroExit:     atomic.LoadInt64(&m.nonZeroExit),
		Signaled:        atomic.LoadInt64(&m.signaled),
		Canceled:        atomic.LoadInt64(&m.canceled),
		AvgDuration:     m.avgDuration(),
		MinDuration:     time.Duration(atomic.LoadInt64(&m.minDuration)),
		MaxDuration:     time.Duration(atomic.LoadInt64(&m.maxDuration)),
		ProgramStats:    m.getProgramStats(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	ProgramStats    map[string]*ProgramStats
	TotalExecutions int64
	SuccessfulExec  int64
	FailedExec      int64
	PolicyDenied    int64
	SpawnFailed     int64
	NonZeroExit     int64
	Signaled        int64
	Canceled        int64
	AvgDuration     time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
}

// SuccessRate returns the success rate as a percentage.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.TotalExecutions == 0 {
		return 0
	}
	return float64(s.SuccessfulExec) / float64(s.TotalExecutions) * 100
}

// ErrorRate returns the error rate as a percentage.
func (s MetricsSnapshot) ErrorRate() float64 {
	if s.TotalExecutions == 0 {
		return 0
	}
	return float64(s.FailedExec) / float64(s.TotalExecutions) * 100
}

func (m *Metrics) avgDuration() time.Duration {
	count := atomic.LoadInt64(&m.durationCount)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.totalDuration) / count)
}

func (m *Metrics) getProgramStats() map[string]*ProgramStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*ProgramStats, len(m.programStats))
	for k, v := range m.programStats {
		copied := *v
		result[k] = &copied
	}
	return result
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.totalExecutions, 0)
	atomic.StoreInt64(&m.successfulExec, 0)
	atomic.StoreInt64(&m.failedExec, 0)
	atomic.StoreInt64(&m.policyDenied, 0)
	atomic.StoreInt64(&m.spawnFailed, 0)
	atomic.StoreInt64(&m.nonZeroExit, 0)
	atomic.StoreInt64(&m.signaled, 0)
	atomic.StoreInt64(&m.canceled, 0)
	atomic.StoreInt64(&m.totalDuration, 0)
	atomic.StoreInt64(&m.durationCount, 0)
	atomic.StoreInt64(&m.minDuration, -1)
	atomic.StoreInt64(&m.maxDuration, 0)

	m.mu.Lock()
	m.programStats = make(map[string]*ProgramStats)
	m.mu.Unlock()
}
