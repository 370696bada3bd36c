package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// DefaultKeychainService namespaces openllm entries in the OS keychain
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
const DefaultKeychainService = "openllm"

// availabilityProbeKey is looked up by Available. The key is never written;
// a clean "not found" from the daemon proves the keychain is reachable.
const availabilityProbeKey = "__openllm_availability_check__"

// keyringProvider abstracts go-keyring calls so tests can substitute a fake.
type keyringProvider interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// osKeyring delegates to the real go-keyring package.
type osKeyring struct{}

func (osKeyring) Set(service, user, password string) error { return keyring.Set(service, user, password) }
func (osKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (osKeyring) Delete(service, user string) error        { return keyring.Delete(service, user) }

// KeychainStore persists secrets in the OS credential store.
//
// Writes are verified: after a Set, the value is read back through a fresh
// keyring lookup and compared byte for byte. Credential daemons are known to
// silently accept writes that are never committed; a secret that "stored"
// but cannot be read back is worse than an explicit failure.
type KeychainStore struct {
	service  string
	provider keyringProvider
	logger   *slog.Logger
}

// NewKeychainStore creates a keychain store with the default service name.
func NewKeychainStore() *KeychainStore {
	return NewKeychainStoreWithService(DefaultKeychainService)
}

// NewKeychainStoreWithService creates a keychain store namespaced by the
// given service identifier.
func NewKeychainStoreWithService(service string) *KeychainStore {
	return &KeychainStore{
		service:  service,
		provider: osKeyring{},
		logger:   slog.Default(),
	}
}

// SetLogger replaces the store's logger.
func (s *KeychainStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// setProvider substitutes the keyring implementation. Test hook.
func (s *KeychainStore) setProvider(p keyringProvider) { s.provider = p }

func (s *KeychainStore) Name() string { return "keychain" }

// Available probes the keychain daemon with a read of a key that is never
// written. ErrNotFound means the daemon answered, so the store is usable.
func (s *KeychainStore) Available(_ context.Context) bool {
	_, err := s.provider.Get(s.service, availabilityProbeKey)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	s.logger.Warn("keychain unavailable", slog.String("error", err.Error()))
	return false
}

func (s *KeychainStore) Get(_ context.Context, key string) (string, bool) {
	v, err := s.provider.Get(s.service, key)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Warn("keychain read failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
		return "", false
	}
	return v, true
}

func (s *KeychainStore) Set(_ context.Context, key, value string) error {
	if err := s.provider.Set(s.service, key, value); err != nil {
		return fmt.Errorf("storing %q in keychain: %w", key, err)
	}

	// Read back through a fresh lookup to ensure the write was committed,
	// not just cached by the daemon.
	got, err := s.provider.Get(s.service, key)
	if err != nil {
		return fmt.Errorf("%w: could not read back %q: %v", ErrVerification, key, err)
	}
	if got != value {
		return fmt.Errorf("%w: value mismatch for %q", ErrVerification, key)
	}
	return nil
}

func (s *KeychainStore) Delete(_ context.Context, key string) error {
	err := s.provider.Delete(s.service, key)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("deleting %q from keychain: %w", key, err)
}

func (s *KeychainStore) Has(ctx context.Context, key string) bool {
	_, ok := s.Get(ctx, key)
	return ok
}

func (s *KeychainStore) Info(ctx context.Context, key string) Info {
	return NewInfo(s.Has(ctx, key), s.Name())
}
