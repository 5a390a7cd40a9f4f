package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry owns the adapter instances built at startup
type Registry struct {
	mu       sync.RWMutex
	adapters map[ProviderID]Adapter
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[ProviderID]Adapter),
	}
}

// Register adds an adapter. Each identity may be registered once.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	id := adapter.ID()
	if _, ok := capabilities[id]; !ok {
		return fmt.Errorf("unknown provider identity %q", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, id)
	}
	r.adapters[id] = adapter
	return nil
}

// Get retrieves an adapter by identity
func (r *Registry) Get(id ProviderID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return adapter, nil
}

// IDs returns all registered identities, sorted
func (r *Registry) IDs() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ProviderID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Configured returns the identities whose adapters have credentials, sorted
func (r *Registry) Configured() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ProviderID, 0, len(r.adapters))
	for id, a := range r.adapters {
		if a.Configured() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AnyConfigured reports whether at least one adapter serving the family has credentials
func (r *Registry) AnyConfigured(family Family) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, a := range r.adapters {
		if !a.Configured() {
			continue
		}
		for _, op := range capabilities[id] {
			if op.Family() == family {
				return true
			}
		}
	}
	return false
}

// Status summarizes registration for health endpoints
func (r *Registry) Status() map[ProviderID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[ProviderID]bool, len(r.adapters))
	for id, a := range r.adapters {
		status[id] = a.Configured()
	}
	return status
}
