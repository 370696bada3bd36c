// Package resolver resolves secrets and provider configuration from
// multiple sources in priority order: process environment, .env files, a
// preferred primary backend (host RPC or the OS keychain, never both), and
// registered fallbacks.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/openllm-dev/openllm/internal/observability"
	"github.com/openllm-dev/openllm/internal/rpc"
	"github.com/openllm-dev/openllm/internal/secrets"
)

// SecretsStore selects the preferred primary secret backend. The two are
// mutually exclusive: probing one suppresses the other.
type SecretsStore string

const (
	// StoreVSCode reads and writes through host RPC endpoints.
	StoreVSCode SecretsStore = "vscode"
	// StoreKeychain reads and writes through the OS credential store.
	StoreKeychain SecretsStore = "keychain"
)

// ParseSecretsStore maps a user-supplied preference string onto a store.
// Unknown values fall back to the keychain.
func ParseSecretsStore(s string) SecretsStore {
	switch strings.ToLower(s) {
	case "vscode", "vs_code", "vs-code", "secretstorage":
		return StoreVSCode
	default:
		return StoreKeychain
	}
}

// ResolvedSecret is a successful lookup with provenance.
type ResolvedSecret struct {
	Value        string
	Source       string
	SourceDetail string
}

// SourceInfo describes where a key would resolve from without exposing the
// value. EnvVar is set only for environment and .env hits.
type SourceInfo struct {
	Source       string
	SourceDetail string
	EnvVar       string
}

// SourceStatus is one entry of a source listing.
type SourceStatus struct {
	Name      string
	Available bool
}

// ErrNoWriteDestination means neither the preferred RPC endpoint nor the
// keychain can take a write.
var ErrNoWriteDestination = errors.New("resolver: no secret store available")

// rpcSecretBackend is the slice of *rpc.SecretStore the resolver uses, kept
// narrow so tests can stub the remote side.
type rpcSecretBackend interface {
	Name() string
	Available(ctx context.Context) bool
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SecretResolver probes secret sources in a fixed priority order and routes
// writes by user preference. Configure it before first use; it is not safe
// to reconfigure concurrently with lookups.
type SecretResolver struct {
	checkEnvironment bool
	checkDotenv      bool
	secretsStore     SecretsStore
	rpcEndpoints     []string
	fallbacks        []secrets.Store

	env      *secrets.EnvStore
	keychain secrets.Store

	lookupEndpoint func(name string) (rpc.Endpoint, bool)
	newRPCStore    func(e rpc.Endpoint) rpcSecretBackend

	logger  *slog.Logger
	metrics *observability.MetricsCollector
}

// NewSecretResolver creates a resolver with defaults: environment checks on,
// .env checks off, keychain as the primary store, and "vscode" as the only
// RPC endpoint candidate.
func NewSecretResolver() *SecretResolver {
	return &SecretResolver{
		checkEnvironment: true,
		checkDotenv:      false,
		secretsStore:     StoreKeychain,
		rpcEndpoints:     []string{"vscode"},
		env:              secrets.NewEnvStore(),
		keychain:         secrets.NewKeychainStore(),
		lookupEndpoint:   rpc.GetEndpoint,
		newRPCStore:      func(e rpc.Endpoint) rpcSecretBackend { return rpc.NewSecretStore(e) },
		logger:           slog.Default(),
	}
}

// SetSecretsStore sets the primary store preference. Called by the host
// application to route secrets where the user wants them.
func (r *SecretResolver) SetSecretsStore(s SecretsStore) { r.secretsStore = s }

// SecretsStore returns the current primary store preference.
func (r *SecretResolver) SecretsStore() SecretsStore { return r.secretsStore }

// SetCheckEnvironment toggles environment variable probing.
func (r *SecretResolver) SetCheckEnvironment(check bool) { r.checkEnvironment = check }

// CheckEnvironment reports whether environment variables are probed.
func (r *SecretResolver) CheckEnvironment() bool { return r.checkEnvironment }

// SetCheckDotenv toggles .env file probing.
func (r *SecretResolver) SetCheckDotenv(check bool) { r.checkDotenv = check }

// CheckDotenv reports whether .env files are probed.
func (r *SecretResolver) CheckDotenv() bool { return r.checkDotenv }

// AddRPCEndpoint appends an endpoint name to the RPC candidate list.
func (r *SecretResolver) AddRPCEndpoint(name string) {
	r.rpcEndpoints = append(r.rpcEndpoints, name)
}

// AddFallback registers an extra store probed after the primary one.
func (r *SecretResolver) AddFallback(s secrets.Store) {
	r.fallbacks = append(r.fallbacks, s)
}

// SetKeychain replaces the keychain backend.
func (r *SecretResolver) SetKeychain(s secrets.Store) { r.keychain = s }

// SetLogger sets the structured logger.
func (r *SecretResolver) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetMetrics attaches a metrics collector. Nil is fine.
func (r *SecretResolver) SetMetrics(m *observability.MetricsCollector) { r.metrics = m }

// EnvKeyName synthesizes the conventional variable name for a lookup key:
// upper-cased, hyphens to underscores, "_API_KEY" suffix.
func EnvKeyName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_")) + "_API_KEY"
}

// Resolve probes sources in priority order and returns the first hit, or
// nil when the key is found nowhere. Unreachable sources are skipped, never
// propagated as errors.
func (r *SecretResolver) Resolve(ctx context.Context, key string) *ResolvedSecret {
	if resolved := r.resolve(ctx, key); resolved != nil {
		r.metrics.RecordSecretResolution(resolved.Source, "hit")
		return resolved
	}
	r.logger.Debug("secret not found in any source", "key", key)
	r.metrics.RecordSecretResolution("none", "miss")
	return nil
}

func (r *SecretResolver) resolve(ctx context.Context, key string) *ResolvedSecret {
	if r.checkEnvironment {
		if value, ok := r.env.Get(ctx, key); ok {
			return &ResolvedSecret{
				Value:        value,
				Source:       "environment",
				SourceDetail: "Environment variable $" + envVarMatched(key),
			}
		}
	}

	if r.checkDotenv {
		if value, ok := r.dotenvLookup(key); ok {
			return &ResolvedSecret{
				Value:        value,
				Source:       "dotenv",
				SourceDetail: fmt.Sprintf(".env file (%s)", EnvKeyName(key)),
			}
		}
	}

	switch r.secretsStore {
	case StoreVSCode:
		for _, name := range r.rpcEndpoints {
			store, ok := r.rpcStoreFor(name)
			if !ok || !store.Available(ctx) {
				continue
			}
			if value, ok := store.Get(ctx, key); ok {
				return &ResolvedSecret{
					Value:        value,
					Source:       "rpc:" + name,
					SourceDetail: name + " SecretStorage",
				}
			}
		}
	case StoreKeychain:
		if r.keychain.Available(ctx) {
			if value, ok := r.keychain.Get(ctx, key); ok {
				return &ResolvedSecret{
					Value:        value,
					Source:       "keychain",
					SourceDetail: "System Keychain",
				}
			}
		}
	}

	for _, store := range r.fallbacks {
		if store.Name() == "environment" || store.Name() == "keychain" {
			continue
		}
		if value, ok := store.Get(ctx, key); ok {
			return &ResolvedSecret{
				Value:        value,
				Source:       store.Name(),
				SourceDetail: store.Name(),
			}
		}
	}

	return nil
}

// envVarMatched reports which environment variable a key resolved from,
// mirroring the environment store's lookup order.
func envVarMatched(key string) string {
	if os.Getenv(key) != "" {
		return key
	}
	for _, name := range secrets.EnvVarsForProvider(key) {
		if os.Getenv(name) != "" {
			return name
		}
	}
	return EnvKeyName(key)
}

// rpcStoreFor resolves an endpoint name to a wire-backed store, skipping
// endpoints that do not advertise the secrets capability.
func (r *SecretResolver) rpcStoreFor(name string) (rpcSecretBackend, bool) {
	e, ok := r.lookupEndpoint(name)
	if !ok || !e.SupportsSecrets() {
		return nil, false
	}
	return r.newRPCStore(e), true
}

// dotenvLookup reads ./.env and matches the synthesized variable name.
func (r *SecretResolver) dotenvLookup(key string) (string, bool) {
	vars, err := godotenv.Read()
	if err != nil {
		return "", false
	}
	value := vars[EnvKeyName(key)]
	return value, value != ""
}

// writeDestination picks where a write routes under the current preference:
// the first registered RPC endpoint in VSCode mode, or the keychain when it
// is available.
func (r *SecretResolver) writeDestination(ctx context.Context) (kind, name string) {
	switch r.secretsStore {
	case StoreVSCode:
		for _, epName := range r.rpcEndpoints {
			if _, ok := r.rpcStoreFor(epName); ok {
				return "rpc", epName
			}
		}
		r.logger.Warn("vscode secrets store selected but no RPC endpoint registered")
		return "", ""
	case StoreKeychain:
		if r.keychain.Available(ctx) {
			return "keychain", ""
		}
	}
	return "", ""
}

// StoreSecret writes the secret to the named store and returns a
// human-readable destination. preferred is "auto", "vscode", "keychain", or
// "rpc:<endpoint>".
func (r *SecretResolver) StoreSecret(ctx context.Context, key, value, preferred string) (string, error) {
	detail, err := r.routeWrite(ctx, preferred, func(store rpcSecretBackend) error {
		return store.Set(ctx, key, value)
	}, func() error {
		if !r.keychain.Available(ctx) {
			return errors.New("resolver: system keychain not available")
		}
		return r.keychain.Set(ctx, key, value)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordSecretWrite(preferred, status)
	return detail, err
}

// DeleteSecret removes the secret from the named store. Routing matches
// StoreSecret, except the keychain path skips the availability probe so a
// delete can still clear stale entries.
func (r *SecretResolver) DeleteSecret(ctx context.Context, key, preferred string) (string, error) {
	detail, err := r.routeWrite(ctx, preferred, func(store rpcSecretBackend) error {
		return store.Delete(ctx, key)
	}, func() error {
		return r.keychain.Delete(ctx, key)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordSecretWrite(preferred, status)
	return detail, err
}

// routeWrite maps a preference string to a destination and runs the matching
// operation, returning the human-readable destination detail.
func (r *SecretResolver) routeWrite(ctx context.Context, preferred string, viaRPC func(rpcSecretBackend) error, viaKeychain func() error) (string, error) {
	switch {
	case preferred == "auto":
		kind, name := r.writeDestination(ctx)
		switch kind {
		case "rpc":
			return r.routeWrite(ctx, "rpc:"+name, viaRPC, viaKeychain)
		case "keychain":
			return r.routeWrite(ctx, "keychain", viaRPC, viaKeychain)
		}
		return "", ErrNoWriteDestination

	case preferred == "vscode":
		return r.routeWrite(ctx, "rpc:vscode", viaRPC, viaKeychain)

	case preferred == "keychain":
		if err := viaKeychain(); err != nil {
			return "", err
		}
		return "System Keychain", nil

	case strings.HasPrefix(preferred, "rpc:"):
		name := strings.TrimPrefix(preferred, "rpc:")
		store, ok := r.rpcStoreFor(name)
		if !ok {
			return "", fmt.Errorf("resolver: RPC endpoint %q not registered", name)
		}
		if !store.Available(ctx) {
			return "", fmt.Errorf("resolver: RPC endpoint %q not reachable", name)
		}
		if err := viaRPC(store); err != nil {
			return "", err
		}
		return name + " SecretStorage", nil
	}

	return "", fmt.Errorf("resolver: unknown store %q", preferred)
}

// WriteDestinationInfo reports where a write would currently route.
func (r *SecretResolver) WriteDestinationInfo(ctx context.Context) (source, detail string) {
	kind, name := r.writeDestination(ctx)
	switch kind {
	case "rpc":
		return "rpc:" + name, name + " SecretStorage"
	case "keychain":
		return "keychain", "System Keychain"
	}
	return "none", "No store available"
}

// SourceInfoFor reports where one key would resolve from, without returning
// the value.
func (r *SecretResolver) SourceInfoFor(ctx context.Context, key string) *SourceInfo {
	resolved := r.resolve(ctx, key)
	if resolved == nil {
		return nil
	}
	return &SourceInfo{Source: resolved.Source, SourceDetail: resolved.SourceDetail}
}

// AllSourceInfo batches source lookups for many keys, probing each backend's
// availability once instead of per key. Only the preferred primary backend
// is consulted. Missing keys map to nil.
func (r *SecretResolver) AllSourceInfo(ctx context.Context, keys []string) map[string]*SourceInfo {
	results := make(map[string]*SourceInfo, len(keys))

	var rpcName string
	var rpcStore rpcSecretBackend
	if r.secretsStore == StoreVSCode {
		for _, name := range r.rpcEndpoints {
			if store, ok := r.rpcStoreFor(name); ok && store.Available(ctx) {
				rpcName, rpcStore = name, store
				break
			}
		}
	}
	keychainAvailable := r.secretsStore == StoreKeychain && r.keychain.Available(ctx)

	for _, key := range keys {
		envKey := EnvKeyName(key)

		if r.checkEnvironment {
			if _, ok := r.env.Get(ctx, key); ok {
				results[key] = &SourceInfo{
					Source:       "environment",
					SourceDetail: "Environment variable: " + envKey,
					EnvVar:       envKey,
				}
				continue
			}
		}

		if r.checkDotenv {
			if _, ok := r.dotenvLookup(key); ok {
				results[key] = &SourceInfo{
					Source:       "dotenv",
					SourceDetail: fmt.Sprintf(".env file (%s)", envKey),
					EnvVar:       envKey,
				}
				continue
			}
		}

		if rpcStore != nil {
			if _, ok := rpcStore.Get(ctx, key); ok {
				results[key] = &SourceInfo{
					Source:       "secretStorage",
					SourceDetail: rpcName + " SecretStorage",
				}
				continue
			}
		}
		if keychainAvailable {
			if _, ok := r.keychain.Get(ctx, key); ok {
				results[key] = &SourceInfo{
					Source:       "keychain",
					SourceDetail: "System Keychain",
				}
				continue
			}
		}

		results[key] = nil
	}

	return results
}

// ListSources enumerates the sources the current configuration would
// consult and whether each is available. Only the preferred primary backend
// is probed.
func (r *SecretResolver) ListSources(ctx context.Context) []SourceStatus {
	var sources []SourceStatus

	if r.checkEnvironment {
		sources = append(sources, SourceStatus{Name: "environment", Available: true})
	}
	if r.checkDotenv {
		sources = append(sources, SourceStatus{Name: "dotenv", Available: true})
	}

	switch r.secretsStore {
	case StoreVSCode:
		for _, name := range r.rpcEndpoints {
			store, ok := r.rpcStoreFor(name)
			sources = append(sources, SourceStatus{
				Name:      "rpc:" + name,
				Available: ok && store.Available(ctx),
			})
		}
	case StoreKeychain:
		sources = append(sources, SourceStatus{
			Name:      "keychain",
			Available: r.keychain.Available(ctx),
		})
	}

	return sources
}
