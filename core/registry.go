package core

import (
	"fmt"
	"sort"
	"sync"
)

// AdapterRegistry maps provider types to their adapter.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[ProviderType]ProviderAdapter
}

func NewAdapterRegistry(adapters ...ProviderAdapter) (*AdapterRegistry, error) {
	registry := &AdapterRegistry{adapters: make(map[ProviderType]ProviderAdapter)}
	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *AdapterRegistry) Register(adapter ProviderAdapter) error {
	if adapter == nil {
		return fmt.Errorf("core: adapter is nil")
	}
	providerType := adapter.Type()
	if !providerType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidProviderType, providerType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[providerType]; exists {
		return fmt.Errorf("core: adapter already registered: %s", providerType)
	}
	r.adapters[providerType] = adapter
	return nil
}

func (r *AdapterRegistry) Get(providerType ProviderType) (ProviderAdapter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	adapter, ok := r.adapters[providerType]
	r.mu.RUnlock()
	return adapter, ok
}

func (r *AdapterRegistry) Types() []ProviderType {
	r.mu.RLock()
	types := make([]ProviderType, 0, len(r.adapters))
	for providerType := range r.adapters {
		types = append(types, providerType)
	}
	r.mu.RUnlock()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
