package secrets

import (
	"context"
	"fmt"
)

// ChainStore composes multiple stores with fallback behavior.
//
// Reads try each member in order and return the first hit from an available
// store. Writes go to a single designated member (the first, by default).
// Deletes are best-effort across every member that currently has the key; a
// chain delete never fails just because some member is read-only.
type ChainStore struct {
	stores     []Store
	writeIndex int
}

// NewChainStore creates a chain over the given stores. The first store is
// the write target. At least one store is required.
func NewChainStore(stores ...Store) (*ChainStore, error) {
	return NewChainStoreWithWriteIndex(stores, 0)
}

// NewChainStoreWithWriteIndex creates a chain that writes to stores[writeIndex].
func NewChainStoreWithWriteIndex(stores []Store, writeIndex int) (*ChainStore, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("chain store requires at least one store")
	}
	if writeIndex < 0 || writeIndex >= len(stores) {
		return nil, fmt.Errorf("chain write index %d out of bounds for %d stores", writeIndex, len(stores))
	}
	return &ChainStore{stores: stores, writeIndex: writeIndex}, nil
}

// Stores returns the chain members in read order.
func (c *ChainStore) Stores() []Store { return c.stores }

// WriteStore returns the member that receives writes.
func (c *ChainStore) WriteStore() Store { return c.stores[c.writeIndex] }

// FindStore returns the first available member holding the key, or nil.
func (c *ChainStore) FindStore(ctx context.Context, key string) Store {
	for _, s := range c.stores {
		if s.Available(ctx) && s.Has(ctx, key) {
			return s
		}
	}
	return nil
}

func (c *ChainStore) Name() string { return "chain" }

// Available reports true if any member is available.
func (c *ChainStore) Available(ctx context.Context) bool {
	for _, s := range c.stores {
		if s.Available(ctx) {
			return true
		}
	}
	return false
}

func (c *ChainStore) Get(ctx context.Context, key string) (string, bool) {
	for _, s := range c.stores {
		if !s.Available(ctx) {
			continue
		}
		if v, ok := s.Get(ctx, key); ok {
			return v, true
		}
	}
	return "", false
}

func (c *ChainStore) Set(ctx context.Context, key, value string) error {
	return c.stores[c.writeIndex].Set(ctx, key, value)
}

func (c *ChainStore) Delete(ctx context.Context, key string) error {
	for _, s := range c.stores {
		if s.Has(ctx, key) {
			// Read-only members are skipped silently.
			_ = s.Delete(ctx, key)
		}
	}
	return nil
}

func (c *ChainStore) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

func (c *ChainStore) Info(ctx context.Context, key string) Info {
	for _, s := range c.stores {
		if !s.Available(ctx) {
			continue
		}
		if s.Has(ctx, key) {
			return NewInfo(true, s.Name())
		}
	}
	return NotFound()
}
