package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps providers in memory. Used in tests and as a runtime
// scratch store.
type MemoryStore struct {
	mu        sync.RWMutex
	providers []Provider
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith creates a store pre-populated with providers.
func NewMemoryStoreWith(providers []Provider) *MemoryStore {
	s := &MemoryStore{providers: make([]Provider, len(providers))}
	copy(s.providers, providers)
	return s
}

// SetProviders replaces the whole provider list.
func (s *MemoryStore) SetProviders(providers []Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = make([]Provider, len(providers))
	copy(s.providers, providers)
}

// Clear removes all providers.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = nil
}

// Providers returns a copy of the provider list.
func (s *MemoryStore) Providers(ctx context.Context) ([]Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Provider, len(s.providers))
	copy(out, s.providers)
	return out, nil
}

// UpdateProvider replaces an existing provider, matched case-insensitively.
func (s *MemoryStore) UpdateProvider(ctx context.Context, name string, p Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(name)
	for i := range s.providers {
		if strings.ToLower(s.providers[i].Name) == lower {
			s.providers[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
}

// AddProvider adds a new provider. Names collide case-insensitively.
func (s *MemoryStore) AddProvider(ctx context.Context, p Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(p.Name)
	for i := range s.providers {
		if strings.ToLower(s.providers[i].Name) == lower {
			return fmt.Errorf("%w: %s", ErrProviderExists, p.Name)
		}
	}
	s.providers = append(s.providers, p)
	return nil
}

// RemoveProvider deletes a provider, matched case-insensitively.
func (s *MemoryStore) RemoveProvider(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(name)
	kept := s.providers[:0]
	for _, p := range s.providers {
		if strings.ToLower(p.Name) != lower {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(s.providers) {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	s.providers = kept
	return nil
}
