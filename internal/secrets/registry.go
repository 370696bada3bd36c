package secrets

import (
	"sort"
	"sync"
)

// Factory constructs a fresh store instance.
type Factory func() Store

// Definition describes a registered store type.
type Definition struct {
	// Name uniquely identifies the store type ("env", "keychain", ...).
	Name string
	// Description is a human-readable summary shown in UI surfaces.
	Description string
	// New constructs an instance.
	New Factory
	// Plugin marks store types contributed by external packages.
	Plugin bool
	// Package names the contributing package for plugins.
	Package string
}

// storeRegistry maps store type names to definitions. Hosts register custom
// backends at startup; lookups happen per resolver call.
type storeRegistry struct {
	mu     sync.RWMutex
	stores map[string]Definition
}

var registry = &storeRegistry{stores: map[string]Definition{
	"env": {
		Name:        "env",
		Description: "Read API keys from environment variables",
		New:         func() Store { return NewEnvStore() },
	},
	"memory": {
		Name:        "memory",
		Description: "In-memory storage for testing",
		New:         func() Store { return NewMemoryStore() },
	},
	"keychain": {
		Name:        "keychain",
		Description: "System keychain (macOS Keychain, Windows Credential Manager, Linux Secret Service)",
		New:         func() Store { return NewKeychainStore() },
	},
}}

// RegisterStore adds or replaces a store type.
func RegisterStore(def Definition) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.stores[def.Name] = def
}

// UnregisterStore removes a store type, reporting whether it existed.
func UnregisterStore(name string) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	_, ok := registry.stores[name]
	delete(registry.stores, name)
	return ok
}

// CreateStore builds a store by type name, or false if unregistered.
func CreateStore(name string) (Store, bool) {
	registry.mu.RLock()
	def, ok := registry.stores[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return def.New(), true
}

// HasStore reports whether a store type is registered.
func HasStore(name string) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	_, ok := registry.stores[name]
	return ok
}

// StoreDefinition returns the definition for a store type.
func StoreDefinition(name string) (Definition, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	def, ok := registry.stores[name]
	return def, ok
}

// ListStores returns all registered definitions sorted by name.
func ListStores() []Definition {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	defs := make([]Definition, 0, len(registry.stores))
	for _, def := range registry.stores {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
