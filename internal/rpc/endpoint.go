package rpc

import (
	"sort"
	"sync"
)

// Well-known endpoint capabilities.
const (
	CapabilitySecrets = "secrets"
	CapabilityConfig  = "config"
	CapabilityTools   = "tools"
)

// Endpoint describes a reachable JSON-RPC peer: where its socket lives,
// the token used to authenticate calls, and what it can serve.
type Endpoint struct {
	Name         string   `json:"name"`
	SocketPath   string   `json:"socketPath"`
	AuthToken    string   `json:"authToken,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// HasCapability reports whether the endpoint advertises the capability.
// An endpoint with no declared capabilities supports everything.
func (e Endpoint) HasCapability(cap string) bool {
	if len(e.Capabilities) == 0 {
		return true
	}
	for _, c := range e.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// SupportsSecrets reports whether secret calls may be routed here.
func (e Endpoint) SupportsSecrets() bool { return e.HasCapability(CapabilitySecrets) }

// SupportsConfig reports whether config calls may be routed here.
func (e Endpoint) SupportsConfig() bool { return e.HasCapability(CapabilityConfig) }

// Client returns a wire client configured for this endpoint.
func (e Endpoint) Client() *Client {
	return NewClient(e.SocketPath, e.AuthToken)
}

// Registry holds named endpoints. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]Endpoint)}
}

// Register adds or replaces the endpoint under its name.
func (r *Registry) Register(e Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[e.Name] = e
}

// Unregister removes the named endpoint. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, name)
}

// Get returns the named endpoint.
func (r *Registry) Get(name string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	return e, ok
}

// List returns all registered endpoints sorted by name.
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByCapability returns endpoints advertising the capability, sorted by name.
func (r *Registry) ByCapability(cap string) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Endpoint
	for _, e := range r.endpoints {
		if e.HasCapability(cap) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// defaultRegistry backs the package-level registration functions. Most
// callers share one process-wide set of endpoints.
var defaultRegistry = NewRegistry()

// RegisterEndpoint adds or replaces an endpoint in the default registry.
func RegisterEndpoint(e Endpoint) { defaultRegistry.Register(e) }

// UnregisterEndpoint removes an endpoint from the default registry.
func UnregisterEndpoint(name string) { defaultRegistry.Unregister(name) }

// GetEndpoint returns a named endpoint from the default registry.
func GetEndpoint(name string) (Endpoint, bool) { return defaultRegistry.Get(name) }

// ListEndpoints returns all endpoints in the default registry.
func ListEndpoints() []Endpoint { return defaultRegistry.List() }

// EndpointsByCapability filters the default registry by capability.
func EndpointsByCapability(cap string) []Endpoint { return defaultRegistry.ByCapability(cap) }
