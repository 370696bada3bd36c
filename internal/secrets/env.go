package secrets

import (
	"context"
	"os"
	"strings"
)

// envVarMap maps provider names to the environment variables that
// conventionally hold their API keys, tried in listed order.
var envVarMap = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"google":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"mistral":    {"MISTRAL_API_KEY"},
	"azure":      {"AZURE_API_KEY", "AZURE_OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"ollama":     {}, // Ollama does not need an API key.
}

// EnvStore reads secrets from environment variables. It is read-only.
//
// Lookup order for a key K: the exact variable K, then the provider mapping
// (e.g. "gemini" -> GEMINI_API_KEY or GOOGLE_API_KEY), then the synthesized
// name UPPER(K)_API_KEY. The first non-empty value wins.
type EnvStore struct{}

// NewEnvStore creates an environment variable secret store.
func NewEnvStore() *EnvStore { return &EnvStore{} }

// EnvVarsForProvider returns the conventional variable names for a provider,
// or nil if the provider has no mapping.
func EnvVarsForProvider(provider string) []string {
	return envVarMap[strings.ToLower(provider)]
}

func (s *EnvStore) Name() string { return "env" }

func (s *EnvStore) Available(_ context.Context) bool { return true }

func (s *EnvStore) Get(_ context.Context, key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	for _, name := range envVarMap[strings.ToLower(key)] {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	if v := os.Getenv(strings.ToUpper(key) + "_API_KEY"); v != "" {
		return v, true
	}
	return "", false
}

func (s *EnvStore) Set(_ context.Context, _, _ string) error {
	return ErrReadOnly
}

func (s *EnvStore) Delete(_ context.Context, _ string) error {
	return ErrReadOnly
}

func (s *EnvStore) Has(ctx context.Context, key string) bool {
	_, ok := s.Get(ctx, key)
	return ok
}

func (s *EnvStore) Info(ctx context.Context, key string) Info {
	if s.Has(ctx, key) {
		return NewInfo(true, s.Name())
	}
	return NotFound()
}
