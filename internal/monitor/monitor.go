// Package monitor implements the System and Process monitors that feed
// the Capture Trigger context events and give operators a resource
// picture of the host the agent runs on, grounded on the original Rust
// oneshim-monitor crate's SystemMonitor/ProcessMonitor ports.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// SystemMetrics is a point-in-time snapshot of host resource usage.
type SystemMetrics struct {
	Timestamp      time.Time
	CPUCount       int
	MemoryUsed     uint64
	MemoryTotal    uint64
	GoroutineCount int
}

// ProcessInfo describes one running process, ranked by CPU usage.
type ProcessInfo struct {
	PID         int32
	Name        string
	CPUPercent  float64
	MemoryBytes uint64
}

// WindowInfo describes the foreground window, when the platform can
// report one.
type WindowInfo struct {
	AppName string
	Title   string
}

// SystemMonitor collects host resource metrics.
type SystemMonitor interface {
	CollectMetrics(ctx context.Context) (SystemMetrics, error)
}

// ProcessMonitor reports the foreground window and top processes. Both
// are platform-specific; this package ships only the cross-platform
// runtime-stats collector, not a window/process enumerator — no pack
// example exercises a pure-Go process-enumeration library, and adding
// one here wouldn't be grounded in anything the corpus actually uses.
type ProcessMonitor interface {
	ActiveWindow(ctx context.Context) (*WindowInfo, error)
	TopProcesses(ctx context.Context, limit int) ([]ProcessInfo, error)
}

// RuntimeSystemMonitor collects metrics from the Go runtime itself
// (goroutine count, heap usage) rather than shelling out to an external
// library — the closest stand-in available without a platform-specific
// sysinfo binding in the corpus.
type RuntimeSystemMonitor struct {
	mu sync.Mutex
}

// NewRuntimeSystemMonitor builds a RuntimeSystemMonitor.
func NewRuntimeSystemMonitor() *RuntimeSystemMonitor {
	return &RuntimeSystemMonitor{}
}

// CollectMetrics reports CPU count, goroutine count, and heap usage as
// reported by the Go runtime.
func (m *RuntimeSystemMonitor) CollectMetrics(ctx context.Context) (SystemMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemMetrics{
		Timestamp:      time.Now(),
		CPUCount:       runtime.NumCPU(),
		MemoryUsed:     memStats.Alloc,
		MemoryTotal:    memStats.Sys,
		GoroutineCount: runtime.NumGoroutine(),
	}, nil
}

// NoOpProcessMonitor reports no foreground window and no processes. It
// is the default until a platform-specific implementation is wired in,
// mirroring the original crate's "not any of macos/windows/linux"
// fallback of returning an empty result rather than an error.
type NoOpProcessMonitor struct{}

func (NoOpProcessMonitor) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	return nil, nil
}

func (NoOpProcessMonitor) TopProcesses(ctx context.Context, limit int) ([]ProcessInfo, error) {
	return nil, nil
}
