// Package secrets defines the Store interface for API-key storage and the
// built-in backends (environment, in-memory, system keychain, chain).
// Backends are deliberately small: the resolver layer decides ordering and
// routing, a backend only knows how to read and write its own medium.
package secrets

import (
	"context"
	"errors"
)

// Info describes whether a secret exists and which store holds it,
// without exposing the value itself.
type Info struct {
	Available bool
	Source    string
}

// NewInfo builds an Info for a secret found in the named store.
func NewInfo(available bool, source string) Info {
	return Info{Available: available, Source: source}
}

// NotFound is the Info returned when no store holds the key.
func NotFound() Info {
	return Info{Available: false, Source: "none"}
}

var (
	// ErrReadOnly is returned by stores that cannot persist writes.
	ErrReadOnly = errors.New("secret store is read-only")
	// ErrNotFound is returned when a key does not exist in any consulted store.
	ErrNotFound = errors.New("secret not found")
	// ErrNotAvailable is returned when the backing facility is unusable
	// (e.g. no keychain daemon on a headless host).
	ErrNotAvailable = errors.New("secret store not available")
	// ErrVerification is returned when a keychain write appeared to succeed
	// but the read-back did not return the same value.
	ErrVerification = errors.New("secret store verification failed")
)

// Store is the uniform backend contract.
//
// Keys can be provider names (e.g. "openai", mapped to OPENAI_API_KEY by the
// environment store) or direct key names. Implementations must be safe for
// concurrent use.
type Store interface {
	// Name returns the store identifier used in source attribution.
	Name() string

	// Available reports whether the store can currently serve requests.
	// It may probe OS facilities but must not block on the network.
	Available(ctx context.Context) bool

	// Get returns the secret value, or false if the key is absent.
	Get(ctx context.Context, key string) (string, bool)

	// Set persists a secret. Read-only stores return ErrReadOnly.
	Set(ctx context.Context, key, value string) error

	// Delete removes a secret. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Has reports whether the key exists without returning its value.
	Has(ctx context.Context, key string) bool

	// Info describes the key's availability and source.
	Info(ctx context.Context, key string) Info
}
