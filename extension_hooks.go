package costhook

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-costhook/core"
)

// AdapterPack replaces builtin adapters for the provider types it covers,
// for example to route a vendor through an internal billing proxy.
type AdapterPack struct {
	Name     string
	Adapters []core.ProviderAdapter
}

type CommandQueryBundleFactory func(service core.CostService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	adapterPacks map[string]AdapterPack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		adapterPacks: map[string]AdapterPack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterAdapterPack(pack AdapterPack) error {
	if h == nil {
		return fmt.Errorf("costhook: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("costhook: adapter pack name is required")
	}
	if len(pack.Adapters) == 0 {
		return fmt.Errorf("costhook: adapter pack %q has no adapters", name)
	}
	for _, adapter := range pack.Adapters {
		if adapter == nil {
			return fmt.Errorf("costhook: adapter pack %q contains nil adapter", name)
		}
		if !adapter.Type().Valid() {
			return fmt.Errorf("costhook: adapter pack %q: %w: %q", name, core.ErrInvalidProviderType, adapter.Type())
		}
	}

	normalized := AdapterPack{
		Name:     name,
		Adapters: append([]core.ProviderAdapter(nil), pack.Adapters...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.adapterPacks[name]; exists {
		return fmt.Errorf("costhook: adapter pack %q already registered", name)
	}
	h.adapterPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("costhook: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("costhook: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("costhook: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("costhook: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyAdapterPacks registers pack adapters in name order. Call it before
// RegisterBuiltinProviders; two packs covering the same type is an error.
func (h *ExtensionHooks) ApplyAdapterPacks(registry *core.AdapterRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("costhook: adapter registry is required")
	}
	for _, pack := range h.AdapterPacks() {
		for _, adapter := range pack.Adapters {
			if err := registry.Register(adapter); err != nil {
				return fmt.Errorf("costhook: adapter pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(service core.CostService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("costhook: cost service is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) AdapterPacks() []AdapterPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := sortedKeys(h.adapterPacks)
	out := make([]AdapterPack, 0, len(names))
	for _, name := range names {
		pack := h.adapterPacks[name]
		out = append(out, AdapterPack{
			Name:     pack.Name,
			Adapters: append([]core.ProviderAdapter(nil), pack.Adapters...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](in map[string]V) []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
