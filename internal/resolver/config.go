package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/openllm-dev/openllm/internal/config"
	"github.com/openllm-dev/openllm/internal/observability"
	"github.com/openllm-dev/openllm/internal/rpc"
)

// Provider state is held in one process-wide cache shared by every resolver
// instance, so a write made through one instance is immediately visible to
// all others. The cache is the source of truth for reads during the process
// lifetime; writes land here first and persist to disk or RPC afterwards.
var (
	globalMu        sync.RWMutex
	globalProviders map[string]ResolvedProvider
)

// cacheProviders returns the shared map, creating it on first access.
// Callers must hold globalMu.
func cacheProviders() map[string]ResolvedProvider {
	if globalProviders == nil {
		globalProviders = make(map[string]ResolvedProvider)
	}
	return globalProviders
}

// SourcePreference selects which config backend family the resolver reads
// and writes: native YAML files or a host application over RPC. The two are
// mutually exclusive on the load and write paths.
type SourcePreference string

const (
	// PreferNative uses the YAML config files.
	PreferNative SourcePreference = "native"
	// PreferVSCode uses host RPC endpoints.
	PreferVSCode SourcePreference = "vscode"
)

// ParseSourcePreference maps a preference string onto a source. Unknown
// values fall back to native.
func ParseSourcePreference(s string) SourcePreference {
	switch strings.ToLower(s) {
	case "vscode", "vs_code", "vs-code":
		return PreferVSCode
	default:
		return PreferNative
	}
}

// Config scopes.
const (
	ScopeUser      = "user"
	ScopeWorkspace = "workspace"
)

// ResolvedProvider is a provider configuration with provenance.
type ResolvedProvider struct {
	Name         string
	Enabled      bool
	APIBase      string
	Models       []string
	Source       string
	SourceDetail string
}

// ResolvedConfig is the full provider set from the cache.
type ResolvedConfig struct {
	Providers []ResolvedProvider
}

// ConfigSourceStatus is one entry of a config source listing.
type ConfigSourceStatus struct {
	Name      string
	Available bool
	Detail    string
}

// rpcConfigBackend is the slice of *rpc.ConfigProvider the resolver uses.
type rpcConfigBackend interface {
	Reachable(ctx context.Context) bool
	Providers(ctx context.Context, scope, workspacePath string) ([]rpc.ProviderConfig, error)
	SetProvider(ctx context.Context, provider, scope, workspacePath string, update rpc.ProviderUpdate) error
}

// ConfigResolver reads provider configuration through the shared cache and
// routes writes by source preference. Creating one does NOT load anything;
// call SetConfigSource or LoadFromSources once preferences are known, so the
// first load does not run with wrong defaults.
type ConfigResolver struct {
	workspacePath string
	rpcEndpoints  []string
	configSource  SourcePreference

	userStore      func() (*config.FileStore, error)
	workspaceStore func(root string) *config.FileStore
	lookupEndpoint func(name string) (rpc.Endpoint, bool)
	newRPCConfig   func(e rpc.Endpoint) rpcConfigBackend

	logger  *slog.Logger
	metrics *observability.MetricsCollector
}

// NewConfigResolver creates a resolver with the native preference and
// "vscode" as the only RPC endpoint candidate.
func NewConfigResolver() *ConfigResolver {
	return &ConfigResolver{
		rpcEndpoints:   []string{"vscode"},
		configSource:   PreferNative,
		userStore:      config.UserStore,
		workspaceStore: config.WorkspaceStore,
		lookupEndpoint: rpc.GetEndpoint,
		newRPCConfig:   func(e rpc.Endpoint) rpcConfigBackend { return rpc.NewConfigProvider(e) },
		logger:         slog.Default(),
	}
}

// NewConfigResolverWithWorkspace creates a resolver scoped to a workspace.
func NewConfigResolverWithWorkspace(workspacePath string) *ConfigResolver {
	r := NewConfigResolver()
	r.workspacePath = workspacePath
	return r
}

// SetWorkspace changes the workspace path and reloads from sources.
func (r *ConfigResolver) SetWorkspace(ctx context.Context, path string) {
	r.workspacePath = path
	r.LoadFromSources(ctx)
}

// WorkspacePath returns the configured workspace path.
func (r *ConfigResolver) WorkspacePath() string { return r.workspacePath }

// SetConfigSource sets the source preference and loads from the matching
// sources. This is the primary initialization path.
func (r *ConfigResolver) SetConfigSource(ctx context.Context, source SourcePreference) {
	r.configSource = source
	r.LoadFromSources(ctx)
}

// ConfigSource returns the current source preference.
func (r *ConfigResolver) ConfigSource() SourcePreference { return r.configSource }

// AddRPCEndpoint appends an endpoint name to the RPC candidate list.
func (r *ConfigResolver) AddRPCEndpoint(name string) {
	r.rpcEndpoints = append(r.rpcEndpoints, name)
}

// SetLogger sets the structured logger.
func (r *ConfigResolver) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetMetrics attaches a metrics collector. Nil is fine.
func (r *ConfigResolver) SetMetrics(m *observability.MetricsCollector) { r.metrics = m }

// rpcConfigFor resolves an endpoint name to a wire-backed config provider,
// skipping endpoints that do not advertise the config capability.
func (r *ConfigResolver) rpcConfigFor(name string) (rpcConfigBackend, bool) {
	e, ok := r.lookupEndpoint(name)
	if !ok || !e.SupportsConfig() {
		return nil, false
	}
	return r.newRPCConfig(e), true
}

// LoadFromSources rebuilds the shared cache from the preferred sources.
// Native mode reads the user file then the workspace file (workspace wins);
// VSCode mode reads user then workspace settings from each reachable RPC
// endpoint. The other family is never touched.
func (r *ConfigResolver) LoadFromSources(ctx context.Context) {
	merged := make(map[string]ResolvedProvider)

	switch r.configSource {
	case PreferNative:
		if store, err := r.userStore(); err == nil && store.Exists() {
			r.mergeFileProviders(ctx, merged, store, "native:user", "~/.config/openllm/config.yaml")
			r.metrics.RecordConfigLoad("native:user")
		}
		if r.workspacePath != "" {
			if store := r.workspaceStore(r.workspacePath); store.Exists() {
				r.mergeFileProviders(ctx, merged, store, "native:workspace", ".config/openllm/config.yaml")
				r.metrics.RecordConfigLoad("native:workspace")
			}
		}

	case PreferVSCode:
		for _, name := range r.rpcEndpoints {
			backend, ok := r.rpcConfigFor(name)
			if !ok || !backend.Reachable(ctx) {
				continue
			}
			if providers, err := backend.Providers(ctx, ScopeUser, ""); err == nil {
				mergeRPCProviders(merged, providers, "rpc:"+name+":user", name+" User Settings")
				r.metrics.RecordConfigLoad("rpc:" + name + ":user")
			}
			if providers, err := backend.Providers(ctx, ScopeWorkspace, r.workspacePath); err == nil {
				mergeRPCProviders(merged, providers, "rpc:"+name+":workspace", name+" Workspace Settings")
				r.metrics.RecordConfigLoad("rpc:" + name + ":workspace")
			}
		}
	}

	globalMu.Lock()
	globalProviders = merged
	globalMu.Unlock()
	r.metrics.SetCachedProviders(len(merged))
	r.logger.Debug("provider cache loaded", "providers", len(merged), "source", string(r.configSource))
}

func (r *ConfigResolver) mergeFileProviders(ctx context.Context, merged map[string]ResolvedProvider, store *config.FileStore, source, detail string) {
	providers, err := store.Providers(ctx)
	if err != nil {
		r.logger.Warn("reading config file", "path", store.Path(), "error", err)
		return
	}
	for _, p := range providers {
		merged[strings.ToLower(p.Name)] = ResolvedProvider{
			Name:         p.Name,
			Enabled:      p.Enabled,
			APIBase:      p.APIBase,
			Models:       p.Models,
			Source:       source,
			SourceDetail: detail,
		}
	}
}

func mergeRPCProviders(merged map[string]ResolvedProvider, providers []rpc.ProviderConfig, source, detail string) {
	for _, p := range providers {
		merged[strings.ToLower(p.Name)] = ResolvedProvider{
			Name:         p.Name,
			Enabled:      p.Enabled,
			APIBase:      p.APIBase,
			Models:       p.Models,
			Source:       source,
			SourceDetail: detail,
		}
	}
}

// Reload re-syncs the cache from sources.
func (r *ConfigResolver) Reload(ctx context.Context) {
	r.LoadFromSources(ctx)
}

// AllProviders returns the cached provider set. Pure memory read, no I/O.
func (r *ConfigResolver) AllProviders() ResolvedConfig {
	globalMu.RLock()
	defer globalMu.RUnlock()
	out := make([]ResolvedProvider, 0, len(cacheProviders()))
	for _, p := range globalProviders {
		out = append(out, p)
	}
	return ResolvedConfig{Providers: out}
}

// Provider returns one cached provider by case-insensitive name, or nil.
func (r *ConfigResolver) Provider(name string) *ResolvedProvider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if p, ok := cacheProviders()[strings.ToLower(name)]; ok {
		return &p
	}
	return nil
}

// ProvidersAtScope reads providers directly from the sources at one scope,
// bypassing the cache. Both families are consulted here since the caller
// asked for an explicit scope inventory.
func (r *ConfigResolver) ProvidersAtScope(ctx context.Context, scope string) []ResolvedProvider {
	var out []ResolvedProvider

	switch scope {
	case ScopeUser:
		if store, err := r.userStore(); err == nil && store.Exists() {
			out = append(out, r.fileProvidersAt(ctx, store, "native:user", "~/.config/openllm/config.yaml")...)
		}
		out = append(out, r.rpcProvidersAt(ctx, ScopeUser, "")...)

	case ScopeWorkspace:
		if r.workspacePath != "" {
			if store := r.workspaceStore(r.workspacePath); store.Exists() {
				out = append(out, r.fileProvidersAt(ctx, store, "native:workspace", ".config/openllm/config.yaml")...)
			}
		}
		out = append(out, r.rpcProvidersAt(ctx, ScopeWorkspace, r.workspacePath)...)
	}

	return out
}

func (r *ConfigResolver) fileProvidersAt(ctx context.Context, store *config.FileStore, source, detail string) []ResolvedProvider {
	providers, err := store.Providers(ctx)
	if err != nil {
		return nil
	}
	out := make([]ResolvedProvider, 0, len(providers))
	for _, p := range providers {
		out = append(out, ResolvedProvider{
			Name:         p.Name,
			Enabled:      p.Enabled,
			APIBase:      p.APIBase,
			Models:       p.Models,
			Source:       source,
			SourceDetail: detail,
		})
	}
	return out
}

func (r *ConfigResolver) rpcProvidersAt(ctx context.Context, scope, workspacePath string) []ResolvedProvider {
	var out []ResolvedProvider
	for _, name := range r.rpcEndpoints {
		backend, ok := r.rpcConfigFor(name)
		if !ok || !backend.Reachable(ctx) {
			continue
		}
		providers, err := backend.Providers(ctx, scope, workspacePath)
		if err != nil {
			continue
		}
		detail := name + " User Settings"
		if scope == ScopeWorkspace {
			detail = name + " Workspace Settings"
		}
		for _, p := range providers {
			out = append(out, ResolvedProvider{
				Name:         p.Name,
				Enabled:      p.Enabled,
				APIBase:      p.APIBase,
				Models:       p.Models,
				Source:       fmt.Sprintf("rpc:%s:%s", name, scope),
				SourceDetail: detail,
			})
		}
	}
	return out
}

// ListSources enumerates the config sources the current preference would
// consult and whether each is available. Only the preferred family is
// probed.
func (r *ConfigResolver) ListSources(ctx context.Context) []ConfigSourceStatus {
	var sources []ConfigSourceStatus

	switch r.configSource {
	case PreferNative:
		if store, err := r.userStore(); err == nil {
			sources = append(sources, ConfigSourceStatus{
				Name:      "native:user",
				Available: store.Exists(),
				Detail:    store.Path(),
			})
		}
		if r.workspacePath != "" {
			store := r.workspaceStore(r.workspacePath)
			sources = append(sources, ConfigSourceStatus{
				Name:      "native:workspace",
				Available: store.Exists(),
				Detail:    store.Path(),
			})
		}

	case PreferVSCode:
		for _, scope := range []string{ScopeUser, ScopeWorkspace} {
			for _, name := range r.rpcEndpoints {
				backend, ok := r.rpcConfigFor(name)
				available := ok && backend.Reachable(ctx)
				detail := name + " User Settings"
				if scope == ScopeWorkspace {
					detail = name + " Workspace Settings"
				}
				sources = append(sources, ConfigSourceStatus{
					Name:      fmt.Sprintf("rpc:%s:%s", name, scope),
					Available: available,
					Detail:    detail,
				})
			}
		}
	}

	return sources
}

// writeDestination routes a write under the current preference. VSCode mode
// without any registered endpoint falls back to native rather than dropping
// the write.
func (r *ConfigResolver) writeDestination(scope string) (kind, endpoint string) {
	if r.configSource == PreferVSCode {
		for _, name := range r.rpcEndpoints {
			if _, ok := r.rpcConfigFor(name); ok {
				return "rpc", name
			}
		}
		r.logger.Warn("vscode config source selected but no RPC endpoint registered, falling back to native")
	}
	return "native", ""
}

func (r *ConfigResolver) sourceDetailFor(scope string) string {
	if r.configSource == PreferVSCode {
		if scope == ScopeUser {
			return "vscode User Settings"
		}
		return "vscode Workspace Settings"
	}
	if scope == ScopeWorkspace {
		return ".config/openllm/config.yaml"
	}
	return "~/.config/openllm/config.yaml"
}

func (r *ConfigResolver) sourceFor(scope string) string {
	if r.configSource == PreferVSCode {
		return "rpc:vscode:" + scope
	}
	return "native:" + scope
}

// SaveProvider writes a provider configuration at the scope. The cache is
// updated first so reads observe the write immediately; the persistence
// attempt follows, and its failure is reported without rolling the cache
// back. Returns a human-readable destination.
func (r *ConfigResolver) SaveProvider(ctx context.Context, p ResolvedProvider, scope string) (string, error) {
	cached := p
	cached.Source = r.sourceFor(scope)
	cached.SourceDetail = r.sourceDetailFor(scope)

	globalMu.Lock()
	cacheProviders()[strings.ToLower(p.Name)] = cached
	size := len(globalProviders)
	globalMu.Unlock()
	r.metrics.SetCachedProviders(size)

	detail, err := r.persistProvider(ctx, p, scope)
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordConfigWrite(r.sourceFor(scope), status)
	return detail, err
}

func (r *ConfigResolver) persistProvider(ctx context.Context, p ResolvedProvider, scope string) (string, error) {
	kind, endpoint := r.writeDestination(scope)

	if kind == "rpc" {
		backend, ok := r.rpcConfigFor(endpoint)
		if !ok {
			return "", fmt.Errorf("resolver: RPC endpoint %q not found", endpoint)
		}
		update := rpc.ProviderUpdate{
			Enabled: &p.Enabled,
			Models:  p.Models,
		}
		if p.APIBase != "" {
			update.APIBase = &p.APIBase
		}
		if err := backend.SetProvider(ctx, p.Name, scope, r.workspacePath, update); err != nil {
			return "", fmt.Errorf("resolver: RPC write failed: %w", err)
		}
		return endpoint + " " + scopeTitle(scope) + " Settings", nil
	}

	store, err := r.nativeStoreFor(scope)
	if err != nil {
		return "", err
	}

	// Merge with the file's own contents so providers absent from the cache
	// are preserved.
	fileProviders, err := store.Providers(ctx)
	if err != nil {
		return "", fmt.Errorf("resolver: reading %s: %w", store.Path(), err)
	}
	entry := config.Provider{
		Name:    p.Name,
		Enabled: p.Enabled,
		APIBase: p.APIBase,
		Models:  p.Models,
	}
	replaced := false
	for i := range fileProviders {
		if strings.EqualFold(fileProviders[i].Name, p.Name) {
			fileProviders[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		fileProviders = append(fileProviders, entry)
	}
	if err := store.ImportProviders(fileProviders); err != nil {
		return "", fmt.Errorf("resolver: writing %s: %w", store.Path(), err)
	}
	return store.Path(), nil
}

func (r *ConfigResolver) nativeStoreFor(scope string) (*config.FileStore, error) {
	if scope == ScopeWorkspace {
		if r.workspacePath == "" {
			return nil, fmt.Errorf("resolver: no workspace path set for workspace-level config")
		}
		return r.workspaceStore(r.workspacePath), nil
	}
	return r.userStore()
}

func scopeTitle(scope string) string {
	if scope == ScopeUser {
		return "User"
	}
	return "Workspace"
}

// UpdateProviderModels replaces a provider's model list, keeping its other
// fields from the cache (or defaults for an unknown provider).
func (r *ConfigResolver) UpdateProviderModels(ctx context.Context, name string, models []string, scope string) (string, error) {
	p := ResolvedProvider{Name: name, Enabled: true, Models: models}
	if existing := r.Provider(name); existing != nil {
		p.Enabled = existing.Enabled
		p.APIBase = existing.APIBase
	}
	return r.SaveProvider(ctx, p, scope)
}

// ToggleProvider flips a provider's enabled state, keeping its other fields
// from the cache.
func (r *ConfigResolver) ToggleProvider(ctx context.Context, name string, enabled bool, scope string) (string, error) {
	p := ResolvedProvider{Name: name, Enabled: enabled}
	if existing := r.Provider(name); existing != nil {
		p.APIBase = existing.APIBase
		p.Models = existing.Models
	}
	return r.SaveProvider(ctx, p, scope)
}

// RemoveProvider deletes a provider at the scope. On the RPC path the
// provider is disabled and emptied instead, since hosts have no remove
// operation. A missing native file means there is nothing to remove.
func (r *ConfigResolver) RemoveProvider(ctx context.Context, name, scope string) (string, error) {
	globalMu.Lock()
	delete(cacheProviders(), strings.ToLower(name))
	size := len(globalProviders)
	globalMu.Unlock()
	r.metrics.SetCachedProviders(size)

	kind, endpoint := r.writeDestination(scope)

	if kind == "rpc" {
		backend, ok := r.rpcConfigFor(endpoint)
		if !ok {
			return "", fmt.Errorf("resolver: RPC endpoint %q not found", endpoint)
		}
		disabled := false
		update := rpc.ProviderUpdate{Enabled: &disabled, Models: []string{}}
		if err := backend.SetProvider(ctx, name, scope, r.workspacePath, update); err != nil {
			return "", fmt.Errorf("resolver: RPC remove failed: %w", err)
		}
		return endpoint + " " + scopeTitle(scope) + " Settings", nil
	}

	store, err := r.nativeStoreFor(scope)
	if err != nil {
		return "", err
	}
	if !store.Exists() {
		return "Already removed", nil
	}
	providers, err := store.Providers(ctx)
	if err != nil {
		return "", fmt.Errorf("resolver: reading %s: %w", store.Path(), err)
	}
	kept := providers[:0]
	for _, p := range providers {
		if !strings.EqualFold(p.Name, name) {
			kept = append(kept, p)
		}
	}
	if err := store.ImportProviders(kept); err != nil {
		return "", fmt.Errorf("resolver: writing %s: %w", store.Path(), err)
	}
	return store.Path(), nil
}

// WriteDestinationInfo reports where a config write at the scope would go.
func (r *ConfigResolver) WriteDestinationInfo(scope string) (source, detail string) {
	kind, endpoint := r.writeDestination(scope)
	if kind == "rpc" {
		return fmt.Sprintf("rpc:%s:%s", endpoint, scope),
			endpoint + " " + scopeTitle(scope) + " Settings"
	}
	store, err := r.nativeStoreFor(scope)
	if err != nil {
		return "native:" + scope, ".config/openllm/config.yaml"
	}
	return "native:" + scope, store.Path()
}
