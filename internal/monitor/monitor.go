// Package monitor samples host resources for the status endpoint and training
// admission.
package monitor

import (
	"context"
	"time"
)

// Monitor produces one sample per Collect call.
type Monitor interface {
	Name() string
	Collect(ctx context.Context) (any, error)
}

type CPUState struct {
	UsagePercent float64 `json:"usage_percent"`
	LogicalCores int     `json:"logical_cores"`
}

type MemoryState struct {
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	TotalBytes     uint64  `json:"total_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

type DiskState struct {
	Path         string  `json:"path"`
	UsedBytes    uint64  `json:"used_bytes"`
	FreeBytes    uint64  `json:"free_bytes"`
	TotalBytes   uint64  `json:"total_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// ModelDirState describes the model directory and the filesystem holding it.
type ModelDirState struct {
	Dir           string    `json:"dir"`
	Artifacts     int       `json:"artifacts"`
	ArtifactBytes int64     `json:"artifact_bytes"`
	Disk          DiskState `json:"disk"`
}

// HostState is the latest snapshot reported by /status.
type HostState struct {
	CPU       CPUState      `json:"cpu"`
	Memory    MemoryState   `json:"memory"`
	ModelDir  ModelDirState `json:"model_dir"`
	Errors    []string      `json:"errors,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func (s *HostState) Clone() *HostState {
	clone := *s
	if s.Errors != nil {
		clone.Errors = append([]string(nil), s.Errors...)
	}
	return &clone
}
