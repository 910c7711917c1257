package monitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"
)

// ArtifactLister lists artifact file names inside a directory.
type ArtifactLister interface {
	Dir() string
	List() ([]string, error)
}

// ModelDirMonitor counts stored artifacts and reports free space on the
// filesystem that holds them.
type ModelDirMonitor struct {
	models ArtifactLister
}

func NewModelDirMonitor(models ArtifactLister) *ModelDirMonitor {
	return &ModelDirMonitor{models: models}
}

func (m *ModelDirMonitor) Name() string {
	return "model_dir"
}

func (m *ModelDirMonitor) Collect(ctx context.Context) (any, error) {
	dir := m.models.Dir()
	state := &ModelDirState{Dir: dir}

	names, err := m.models.List()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			// Removed between List and Stat.
			continue
		}
		state.Artifacts++
		state.ArtifactBytes += info.Size()
	}

	mount := existingAncestor(dir)
	usage, err := disk.UsageWithContext(ctx, mount)
	if err != nil {
		return nil, fmt.Errorf("disk usage of %s: %w", mount, err)
	}
	state.Disk = DiskState{
		Path:         mount,
		UsedBytes:    usage.Used,
		FreeBytes:    usage.Free,
		TotalBytes:   usage.Total,
		UsagePercent: usage.UsedPercent,
	}
	return state, nil
}

// existingAncestor returns dir, or its nearest parent that exists. The model
// directory is only created by the first training run.
func existingAncestor(dir string) string {
	p, err := filepath.Abs(dir)
	if err != nil {
		p = filepath.Clean(dir)
	}
	for {
		if _, err := os.Stat(p); err == nil || !errors.Is(err, fs.ErrNotExist) {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
