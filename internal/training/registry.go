package training

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/haskel/tabml/internal/algo"
)

// FitInput is what a provider receives to fit a model.
type FitInput struct {
	X        [][]float64
	Y        []float64
	Features []string
	Params   Params
}

// FitFunc fits a model. The returned value must satisfy the persistence
// contract of the provider's family.
type FitFunc func(in FitInput) (any, error)

// Provider is a registered training algorithm.
type Provider struct {
	ID          string      `json:"id"`
	Aliases     []string    `json:"aliases,omitempty"`
	Family      algo.Family `json:"family"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
	Fit         FitFunc     `json:"-"`
}

// UnsupportedAlgorithmError is returned for ids no provider is registered under.
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported algorithm %q", e.Algorithm)
}

// Registry maps algorithm ids and aliases to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
	aliases   map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*Provider),
		aliases:   make(map[string]string),
	}
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Register adds a provider. Ids and aliases must be unique.
func (r *Registry) Register(p Provider) error {
	id := normalizeID(p.ID)
	if id == "" {
		return fmt.Errorf("provider id is empty")
	}
	if !p.Family.IsValid() {
		return fmt.Errorf("provider %q has unknown family %q", id, p.Family)
	}
	if p.Fit == nil {
		return fmt.Errorf("provider %q has no fit function", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := []string{id}
	for _, a := range p.Aliases {
		names = append(names, normalizeID(a))
	}
	for _, n := range names {
		if _, taken := r.aliases[n]; taken {
			return fmt.Errorf("algorithm id %q already registered", n)
		}
	}

	p.ID = id
	p.Params = sortedSpecs(p.Params)
	r.providers[id] = &p
	for _, n := range names {
		r.aliases[n] = id
	}
	return nil
}

// Lookup returns the provider registered under id or one of its aliases.
func (r *Registry) Lookup(id string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.aliases[normalizeID(id)]
	if !ok {
		return nil, &UnsupportedAlgorithmError{Algorithm: id}
	}
	return r.providers[canonical], nil
}

// List returns all providers sorted by id.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
