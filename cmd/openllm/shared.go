package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openllm-dev/openllm/internal/config"
	"github.com/openllm-dev/openllm/internal/observability"
	"github.com/openllm-dev/openllm/internal/resolver"
	"github.com/openllm-dev/openllm/internal/rpc"
	"github.com/openllm-dev/openllm/internal/workspace"
)

var flagVerbose bool

// newLogger builds the process logger: JSON on stderr, debug level when
// --verbose is set.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// endpointsPath returns the file where registered endpoints persist
// between CLI invocations.
func endpointsPath() (string, error) {
	st, err := config.UserStore()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(st.Path()), "endpoints.json"), nil
}

// loadEndpoints reads persisted endpoints and registers them, so every
// command sees the same registry the register command wrote.
func loadEndpoints() error {
	path, err := endpointsPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading endpoints file: %w", err)
	}

	var endpoints []rpc.Endpoint
	if err := json.Unmarshal(data, &endpoints); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, e := range endpoints {
		rpc.RegisterEndpoint(e)
	}
	return nil
}

// saveEndpoints persists the current registry contents.
func saveEndpoints() error {
	path, err := endpointsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rpc.ListEndpoints(), "", "  ")
	if err != nil {
		return err
	}
	// 0600: the file carries auth tokens.
	return os.WriteFile(path, data, 0o600)
}

// Resolver flags shared across the secrets and config commands.
var (
	flagSecretsStore string
	flagNoEnv        bool
	flagDotenv       bool
	flagConfigSource string
	flagWorkspace    string
	flagScope        string
)

// newObservability builds the observability facade. Metrics are always
// collected; tracing turns on when OPENLLM_TRACING_ENDPOINT is set.
func newObservability(logger *slog.Logger) *observability.Observability {
	cfg := &observability.Config{
		Metrics: &observability.MetricsConfig{Enabled: true},
	}
	if endpoint := os.Getenv("OPENLLM_TRACING_ENDPOINT"); endpoint != "" {
		cfg.Tracing = &observability.TracingConfig{
			Enabled:  true,
			Endpoint: endpoint,
			Protocol: os.Getenv("OPENLLM_TRACING_PROTOCOL"),
			Insecure: true,
		}
	}
	obs, err := observability.New(cfg, logger)
	if err != nil {
		logger.Warn("observability disabled", slog.String("error", err.Error()))
		return nil
	}
	return obs
}

// newSecretResolver builds a secret resolver from the persisted endpoint
// registry and the command-line flags.
func newSecretResolver(logger *slog.Logger) (*resolver.SecretResolver, error) {
	if err := loadEndpoints(); err != nil {
		return nil, err
	}
	r := resolver.NewSecretResolver()
	r.SetLogger(logger)
	r.SetMetrics(newObservability(logger).MetricsOrNil())
	if flagSecretsStore != "" {
		r.SetSecretsStore(resolver.ParseSecretsStore(flagSecretsStore))
	}
	r.SetCheckEnvironment(!flagNoEnv)
	r.SetCheckDotenv(flagDotenv)
	return r, nil
}

// newConfigResolver builds a config resolver and loads the provider cache.
// The workspace root comes from --workspace, falling back to marker
// detection from the working directory.
func newConfigResolver(ctx context.Context, logger *slog.Logger) (*resolver.ConfigResolver, error) {
	if err := loadEndpoints(); err != nil {
		return nil, err
	}

	ws := flagWorkspace
	if ws == "" {
		ws = workspace.DetectRootFromCwd()
	} else {
		resolved, err := workspace.ResolvePath(ws)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace path: %w", err)
		}
		ws = resolved
	}

	r := resolver.NewConfigResolverWithWorkspace(ws)
	r.SetLogger(logger)
	r.SetMetrics(newObservability(logger).MetricsOrNil())
	if flagConfigSource != "" {
		r.SetConfigSource(ctx, resolver.ParseSourcePreference(flagConfigSource))
	} else {
		r.LoadFromSources(ctx)
	}
	return r, nil
}

// resolveScope normalizes the --scope flag.
func resolveScope() (string, error) {
	switch flagScope {
	case "", resolver.ScopeUser:
		return resolver.ScopeUser, nil
	case resolver.ScopeWorkspace:
		return resolver.ScopeWorkspace, nil
	default:
		return "", fmt.Errorf("unknown scope %q (use user or workspace)", flagScope)
	}
}
