package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Aggregator samples its monitors on a fixed interval and keeps the latest
// HostState.
type Aggregator struct {
	monitors []Monitor
	state    *HostState
	interval time.Duration
	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewAggregator(monitors []Monitor, interval time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		monitors: monitors,
		state:    &HostState{},
		interval: interval,
		done:     make(chan struct{}),
		logger:   logger.With("component", "monitor"),
	}
}

// Start takes a first sample synchronously and then samples in the
// background until ctx is cancelled or Stop is called.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", a.interval)
	}

	a.collect(ctx)
	go a.runLoop(ctx)

	a.logger.Info("host monitor started", "interval", a.interval, "monitors", len(a.monitors))
	return nil
}

func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.logger.Info("host monitor stopped")
	})
}

// State returns a copy of the latest snapshot.
func (a *Aggregator) State() *HostState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Clone()
}

func (a *Aggregator) runLoop(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.collect(ctx)
		case <-ctx.Done():
			return
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) collect(ctx context.Context) {
	next := &HostState{Timestamp: time.Now()}

	for _, m := range a.monitors {
		data, err := m.Collect(ctx)
		if err != nil {
			a.logger.Warn("monitor collection failed", "monitor", m.Name(), "error", err)
			next.Errors = append(next.Errors, fmt.Sprintf("%s: %v", m.Name(), err))
			continue
		}

		switch v := data.(type) {
		case *CPUState:
			next.CPU = *v
		case *MemoryState:
			next.Memory = *v
		case *ModelDirState:
			next.ModelDir = *v
		default:
			a.logger.Warn("unexpected monitor sample", "monitor", m.Name(), "type", fmt.Sprintf("%T", data))
		}
	}

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()
}
