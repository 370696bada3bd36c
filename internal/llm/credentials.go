// Package llm exposes the provider credential surface consumed by LLM
// streaming adapters. It glues the secret and config resolvers together:
// a provider's enablement, base URL, and model list come from the config
// resolver, while its API key comes from the secret resolver.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openllm-dev/openllm/internal/resolver"
)

// Credentials is everything a streaming adapter needs to talk to a
// provider endpoint.
type Credentials struct {
	Provider string
	APIKey   string
	APIBase  string
	Models   []string

	// KeySource records where the API key came from, for diagnostics.
	KeySource string
}

// CredentialSource resolves provider credentials on demand.
type CredentialSource interface {
	Credentials(ctx context.Context, provider string) (*Credentials, error)
}

// ErrProviderDisabled is returned when credentials are requested for a
// provider that exists in configuration but is switched off.
type ErrProviderDisabled struct {
	Provider string
}

func (e *ErrProviderDisabled) Error() string {
	return fmt.Sprintf("provider %q is disabled", e.Provider)
}

// ErrMissingAPIKey is returned when no secret source holds a key for the
// provider. EnvVar names the environment variable that would satisfy it.
type ErrMissingAPIKey struct {
	Provider string
	EnvVar   string
}

func (e *ErrMissingAPIKey) Error() string {
	return fmt.Sprintf("no API key found for provider %q (set %s or store one)", e.Provider, e.EnvVar)
}

// ResolverSource is a CredentialSource backed by the secret and config
// resolvers.
type ResolverSource struct {
	secrets *resolver.SecretResolver
	config  *resolver.ConfigResolver
}

var _ CredentialSource = (*ResolverSource)(nil)

// NewResolverSource builds a credential source from the two resolvers.
func NewResolverSource(secrets *resolver.SecretResolver, config *resolver.ConfigResolver) *ResolverSource {
	return &ResolverSource{secrets: secrets, config: config}
}

// Credentials resolves the full credential set for a provider. Unknown
// providers are not an error: a key from the environment is enough to
// talk to a well-known endpoint. Configured-but-disabled providers are.
func (s *ResolverSource) Credentials(ctx context.Context, provider string) (*Credentials, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "" {
		return nil, fmt.Errorf("provider name is empty")
	}

	creds := &Credentials{Provider: name}

	if p := s.config.Provider(name); p != nil {
		if !p.Enabled {
			return nil, &ErrProviderDisabled{Provider: name}
		}
		creds.APIBase = p.APIBase
		creds.Models = p.Models
	}

	sec := s.secrets.Resolve(ctx, name)
	if sec == nil {
		return nil, &ErrMissingAPIKey{Provider: name, EnvVar: resolver.EnvKeyName(name)}
	}
	creds.APIKey = sec.Value
	creds.KeySource = sec.Source

	return creds, nil
}
