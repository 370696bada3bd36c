package config

import (
	"context"
	"errors"
)

// Sentinel errors for provider mutations.
var (
	ErrProviderNotFound = errors.New("config: provider not found")
	ErrProviderExists   = errors.New("config: provider already exists")
)

// Store is the provider-configuration backend. Provider name matching is
// case-insensitive on all mutation paths.
type Store interface {
	// Providers returns all configured providers.
	Providers(ctx context.Context) ([]Provider, error)
	// UpdateProvider replaces an existing provider's configuration.
	UpdateProvider(ctx context.Context, name string, p Provider) error
	// AddProvider adds a new provider.
	AddProvider(ctx context.Context, p Provider) error
	// RemoveProvider deletes a provider.
	RemoveProvider(ctx context.Context, name string) error
}
