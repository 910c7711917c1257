// Package capacity decides whether the host has room for another training
// run, based on the latest host snapshot.
package capacity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/haskel/tabml/internal/monitor"
)

type Reason string

const (
	ReasonCPUOverload    Reason = "cpu_overload"
	ReasonMemoryOverload Reason = "memory_overload"
	ReasonDiskLow        Reason = "disk_low"
)

// Thresholds bound admission. A zero value disables that check.
type Thresholds struct {
	MaxCPUPercent    float64
	MaxMemoryPercent float64
	MinFreeDiskMB    uint64
}

// Check returns the thresholds state violates.
func Check(state *monitor.HostState, t Thresholds) []Reason {
	var reasons []Reason

	if t.MaxCPUPercent > 0 && state.CPU.UsagePercent > t.MaxCPUPercent {
		reasons = append(reasons, ReasonCPUOverload)
	}
	if t.MaxMemoryPercent > 0 && state.Memory.UsagePercent > t.MaxMemoryPercent {
		reasons = append(reasons, ReasonMemoryOverload)
	}
	disk := state.ModelDir.Disk
	if t.MinFreeDiskMB > 0 && disk.TotalBytes > 0 && disk.FreeBytes < t.MinFreeDiskMB<<20 {
		reasons = append(reasons, ReasonDiskLow)
	}

	return reasons
}

// ExceededError is returned when a training run is refused.
type ExceededError struct {
	Reasons []Reason
}

func (e *ExceededError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = string(r)
	}
	return fmt.Sprintf("insufficient capacity to train: %s", strings.Join(parts, ", "))
}

// StateSource supplies host snapshots.
type StateSource interface {
	State() *monitor.HostState
}

type Guard struct {
	source     StateSource
	mu         sync.RWMutex
	thresholds Thresholds
}

func NewGuard(source StateSource, thresholds Thresholds) *Guard {
	return &Guard{source: source, thresholds: thresholds}
}

// Admit returns an ExceededError when the latest snapshot breaks a
// threshold. Before the first snapshot everything is admitted.
func (g *Guard) Admit() error {
	g.mu.RLock()
	t := g.thresholds
	g.mu.RUnlock()

	state := g.source.State()
	if state.Timestamp.IsZero() {
		return nil
	}
	if reasons := Check(state, t); len(reasons) > 0 {
		return &ExceededError{Reasons: reasons}
	}
	return nil
}

func (g *Guard) UpdateThresholds(t Thresholds) {
	g.mu.Lock()
	g.thresholds = t
	g.mu.Unlock()
}
