// Package metrics keeps evaluation metrics keyed by model name and version.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
)

// DefaultVersion is used when a caller does not name a metrics version.
const DefaultVersion = "v1"

// ErrNotFound is wrapped by NotFoundError.
var ErrNotFound = errors.New("metrics not found")

// NotFoundError is returned when no metrics exist for a key.
type NotFoundError struct {
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("metrics for model %q version %q not found", e.Name, e.Version)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Metrics maps a metric name to its value.
type Metrics map[string]float64

// Store persists metrics. Saving under an existing key replaces the
// previous metrics.
type Store interface {
	Save(ctx context.Context, name, version string, m Metrics) error
	Get(ctx context.Context, name, version string) (Metrics, error)
	Close() error
}

type key struct {
	name    string
	version string
}

// MemoryStore is a process-lifetime Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[key]Metrics
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[key]Metrics)}
}

// Save stores a copy of m.
func (s *MemoryStore) Save(_ context.Context, name, version string, m Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key{name, version}] = maps.Clone(m)
	return nil
}

// Get returns a copy of the stored metrics.
func (s *MemoryStore) Get(_ context.Context, name, version string) (Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[key{name, version}]
	if !ok {
		return nil, &NotFoundError{Name: name, Version: version}
	}
	out := maps.Clone(m)
	if out == nil {
		out = Metrics{}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
