package datasets

import (
	"fmt"
	"sort"
	"sync"
)

// Loader produces a fresh copy of a dataset on every call.
type Loader func() (*Dataset, error)

// Registry maps dataset names to loaders.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// NewDefaultRegistry returns a registry holding the bundled datasets.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.loaders["longley"] = Longley
	return r
}

func (r *Registry) Register(name string, loader Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loaders[name]; exists {
		return fmt.Errorf("%s, %w", name, ErrDatasetExists)
	}
	r.loaders[name] = loader
	return nil
}

func (r *Registry) Load(name string) (*Dataset, error) {
	r.mu.RLock()
	loader, exists := r.loaders[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%s, %w", name, ErrUnknownDataset)
	}
	return loader()
}

// Names lists the registered datasets in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
