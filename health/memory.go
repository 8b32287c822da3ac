package health

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
)

// Default memory thresholds, as fractions of the limit.
const (
	DefaultMemoryWarning  = 0.8
	DefaultMemoryCritical = 0.95
)

// MemoryCheckerConfig configures the memory checker.
type MemoryCheckerConfig struct {
	// Limit is the heap budget in bytes. Zero uses the runtime soft limit
	// (GOMEMLIMIT); without either the check only reports usage.
	Limit uint64

	// Warning is the usage fraction reported as degraded. Default: 0.8
	Warning float64

	// Critical is the usage fraction reported as unhealthy. Default: 0.95
	Critical float64
}

// MemoryChecker reports heap usage against a budget. The in-memory cache
// and rate limit windows live on this heap.
type MemoryChecker struct {
	config MemoryCheckerConfig
	read   func(*runtime.MemStats)
}

// NewMemoryChecker creates a memory checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.Warning <= 0 || config.Warning >= 1 {
		config.Warning = DefaultMemoryWarning
	}
	if config.Critical <= 0 || config.Critical > 1 {
		config.Critical = DefaultMemoryCritical
	}
	if config.Critical < config.Warning {
		config.Critical = config.Warning
	}
	if config.Limit == 0 {
		if soft := debug.SetMemoryLimit(-1); soft > 0 && soft < math.MaxInt64 {
			config.Limit = uint64(soft)
		}
	}
	return &MemoryChecker{config: config, read: runtime.ReadMemStats}
}

// Name returns "memory".
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check implements Checker.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	m.read(&stats)

	details := map[string]any{
		"heap_alloc_bytes": stats.HeapAlloc,
		"heap_objects":     stats.HeapObjects,
		"sys_bytes":        stats.Sys,
		"num_gc":           stats.NumGC,
		"goroutines":       runtime.NumGoroutine(),
	}
	if m.config.Limit == 0 {
		return Healthy("no memory limit configured").WithDetails(details)
	}

	usage := float64(stats.HeapAlloc) / float64(m.config.Limit)
	details["limit_bytes"] = m.config.Limit
	details["usage_percent"] = usage * 100

	msg := fmt.Sprintf("heap at %.1f%% of limit", usage*100)
	switch {
	case usage >= m.config.Critical:
		return Unhealthy(msg, ErrMemoryLimit).WithDetails(details)
	case usage >= m.config.Warning:
		return Degraded(msg).WithDetails(details)
	default:
		return Healthy(msg).WithDetails(details)
	}
}

var _ Checker = (*MemoryChecker)(nil)
