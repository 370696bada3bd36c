package secrets

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps secrets in process memory. It is fully read-write and
// used for tests and short-lived overrides; contents are lost when the
// store is garbage collected.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

// NewMemoryStoreWith creates a store seeded with initial values.
func NewMemoryStoreWith(initial map[string]string) *MemoryStore {
	m := make(map[string]string, len(initial))
	maps.Copy(m, initial)
	return &MemoryStore{secrets: m}
}

// Clear removes all secrets.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.secrets)
}

// Len returns the number of stored secrets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.secrets)
}

// Empty reports whether the store holds no secrets.
func (s *MemoryStore) Empty() bool { return s.Len() == 0 }

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Available(_ context.Context) bool { return true }

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[key]
	return v, ok
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, key string) bool {
	_, ok := s.Get(ctx, key)
	return ok
}

func (s *MemoryStore) Info(ctx context.Context, key string) Info {
	if s.Has(ctx, key) {
		return NewInfo(true, s.Name())
	}
	return NotFound()
}
