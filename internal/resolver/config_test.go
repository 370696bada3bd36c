package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openllm-dev/openllm/internal/config"
	"github.com/openllm-dev/openllm/internal/rpc"
)

// fakeRPCConfig stands in for a wire-backed config provider.
type fakeRPCConfig struct {
	reachable bool
	user      []rpc.ProviderConfig
	workspace []rpc.ProviderConfig
	sets      []string
	setErr    error
}

func (f *fakeRPCConfig) Reachable(ctx context.Context) bool { return f.reachable }

func (f *fakeRPCConfig) Providers(ctx context.Context, scope, workspacePath string) ([]rpc.ProviderConfig, error) {
	if scope == ScopeWorkspace {
		return f.workspace, nil
	}
	return f.user, nil
}

func (f *fakeRPCConfig) SetProvider(ctx context.Context, provider, scope, workspacePath string, update rpc.ProviderUpdate) error {
	f.sets = append(f.sets, provider+"@"+scope)
	return f.setErr
}

// resetCache clears the shared provider cache around a test.
func resetCache(t *testing.T) {
	t.Helper()
	clear := func() {
		globalMu.Lock()
		globalProviders = nil
		globalMu.Unlock()
	}
	clear()
	t.Cleanup(clear)
}

// newNativeResolver wires a resolver to config files under temp dirs.
func newNativeResolver(t *testing.T) (*ConfigResolver, *config.FileStore, *config.FileStore) {
	t.Helper()

	userPath := filepath.Join(t.TempDir(), "config.yaml")
	userStore := config.NewFileStore(userPath, config.LevelUser)
	wsRoot := t.TempDir()
	wsStore := config.WorkspaceStore(wsRoot)

	r := NewConfigResolverWithWorkspace(wsRoot)
	r.userStore = func() (*config.FileStore, error) {
		return config.NewFileStore(userPath, config.LevelUser), nil
	}
	r.workspaceStore = func(root string) *config.FileStore {
		return config.WorkspaceStore(root)
	}
	r.lookupEndpoint = func(name string) (rpc.Endpoint, bool) { return rpc.Endpoint{}, false }
	return r, userStore, wsStore
}

func writeProviders(t *testing.T, store *config.FileStore, providers ...config.Provider) {
	t.Helper()
	if err := store.ImportProviders(providers); err != nil {
		t.Fatalf("ImportProviders: %v", err)
	}
}

func TestLoadFromSourcesNative(t *testing.T) {
	resetCache(t)
	r, userStore, _ := newNativeResolver(t)

	p := config.NewProvider("openai")
	p.Models = []string{"gpt-4o"}
	writeProviders(t, userStore, p)

	r.LoadFromSources(context.Background())

	all := r.AllProviders()
	if len(all.Providers) != 1 {
		t.Fatalf("got %d providers", len(all.Providers))
	}
	got := all.Providers[0]
	if got.Name != "openai" || got.Source != "native:user" {
		t.Errorf("provider = %+v", got)
	}
}

func TestWorkspaceOverridesUser(t *testing.T) {
	resetCache(t)
	r, userStore, wsStore := newNativeResolver(t)

	userP := config.NewProvider("openai")
	userP.Models = []string{"gpt-4o"}
	writeProviders(t, userStore, userP)

	wsP := config.NewProvider("OpenAI")
	wsP.Enabled = false
	wsP.Models = []string{"gpt-4o-mini"}
	writeProviders(t, wsStore, wsP)

	r.LoadFromSources(context.Background())

	got := r.Provider("openai")
	if got == nil {
		t.Fatal("provider missing")
	}
	if got.Enabled || got.Source != "native:workspace" {
		t.Errorf("provider = %+v, want workspace override", got)
	}
	if len(got.Models) != 1 || got.Models[0] != "gpt-4o-mini" {
		t.Errorf("models = %v", got.Models)
	}
}

func TestCacheSharedAcrossInstances(t *testing.T) {
	resetCache(t)
	r1, userStore, _ := newNativeResolver(t)
	writeProviders(t, userStore, config.NewProvider("gemini"))
	r1.LoadFromSources(context.Background())

	// A second instance sees the same cache without loading.
	r2 := NewConfigResolver()
	if got := r2.Provider("gemini"); got == nil {
		t.Error("second instance does not see cached provider")
	}
}

func TestSaveProviderUpdatesCacheBeforePersist(t *testing.T) {
	resetCache(t)
	r, _, _ := newNativeResolver(t)
	// Workspace scope with no workspace path: persistence must fail.
	r.workspacePath = ""

	_, err := r.SaveProvider(context.Background(), ResolvedProvider{
		Name:    "openai",
		Enabled: true,
		Models:  []string{"gpt-4o"},
	}, ScopeWorkspace)
	if err == nil {
		t.Fatal("expected persistence error")
	}

	// The cache was written first; the failed persist does not roll it back.
	got := r.Provider("openai")
	if got == nil || !got.Enabled {
		t.Errorf("cache = %+v, want openai present despite persist failure", got)
	}
}

func TestSaveProviderPersistsToFile(t *testing.T) {
	resetCache(t)
	r, userStore, _ := newNativeResolver(t)

	detail, err := r.SaveProvider(context.Background(), ResolvedProvider{
		Name:    "openai",
		Enabled: true,
		Models:  []string{"gpt-4o"},
		APIBase: "https://api.example.com",
	}, ScopeUser)
	if err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}
	if detail == "" {
		t.Error("empty destination detail")
	}

	providers, err := userStore.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(providers.Providers) != 1 || providers.Providers[0].APIBase != "https://api.example.com" {
		t.Errorf("file providers = %+v", providers.Providers)
	}

	got := r.Provider("openai")
	if got == nil || got.Source != "native:user" {
		t.Errorf("cached = %+v", got)
	}
}

func TestSaveProviderMergesWithFileContents(t *testing.T) {
	resetCache(t)
	r, userStore, _ := newNativeResolver(t)

	// A provider already in the file but absent from the cache must survive
	// a save of another provider.
	writeProviders(t, userStore, config.NewProvider("mistral"))

	if _, err := r.SaveProvider(context.Background(), ResolvedProvider{
		Name:    "openai",
		Enabled: true,
	}, ScopeUser); err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}

	f, err := userStore.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(f.Providers) != 2 {
		t.Errorf("file providers = %+v, want mistral preserved", f.Providers)
	}
}

func TestToggleProviderKeepsModels(t *testing.T) {
	resetCache(t)
	r, userStore, _ := newNativeResolver(t)

	p := config.NewProvider("openai")
	p.Models = []string{"gpt-4o", "gpt-4o-mini"}
	writeProviders(t, userStore, p)
	r.LoadFromSources(context.Background())

	if _, err := r.ToggleProvider(context.Background(), "openai", false, ScopeUser); err != nil {
		t.Fatalf("ToggleProvider: %v", err)
	}

	got := r.Provider("openai")
	if got == nil || got.Enabled {
		t.Fatalf("cached = %+v, want disabled", got)
	}
	if len(got.Models) != 2 {
		t.Errorf("models = %v, want preserved", got.Models)
	}
}

func TestUpdateProviderModels(t *testing.T) {
	resetCache(t)
	r, _, _ := newNativeResolver(t)

	if _, err := r.UpdateProviderModels(context.Background(), "ollama", []string{"llama3"}, ScopeUser); err != nil {
		t.Fatalf("UpdateProviderModels: %v", err)
	}

	got := r.Provider("ollama")
	if got == nil || !got.Enabled || len(got.Models) != 1 {
		t.Errorf("cached = %+v", got)
	}
}

func TestRemoveProviderNative(t *testing.T) {
	resetCache(t)
	r, userStore, _ := newNativeResolver(t)

	writeProviders(t, userStore, config.NewProvider("openai"), config.NewProvider("gemini"))
	r.LoadFromSources(context.Background())

	if _, err := r.RemoveProvider(context.Background(), "openai", ScopeUser); err != nil {
		t.Fatalf("RemoveProvider: %v", err)
	}

	if r.Provider("openai") != nil {
		t.Error("provider still cached after remove")
	}
	f, _ := userStore.Reload()
	if len(f.Providers) != 1 || f.Providers[0].Name != "gemini" {
		t.Errorf("file providers = %+v", f.Providers)
	}
}

func TestRemoveProviderMissingFile(t *testing.T) {
	resetCache(t)
	r, _, _ := newNativeResolver(t)

	detail, err := r.RemoveProvider(context.Background(), "ghost", ScopeUser)
	if err != nil {
		t.Fatalf("RemoveProvider: %v", err)
	}
	if detail != "Already removed" {
		t.Errorf("detail = %q", detail)
	}
}

func TestLoadFromSourcesVSCode(t *testing.T) {
	resetCache(t)

	fake := &fakeRPCConfig{
		reachable: true,
		user: []rpc.ProviderConfig{
			{Name: "openai", Enabled: true, Models: []string{"gpt-4o"}},
		},
		workspace: []rpc.ProviderConfig{
			{Name: "OpenAI", Enabled: false, Models: []string{"gpt-4o-mini"}},
		},
	}
	r := NewConfigResolver()
	r.lookupEndpoint = func(name string) (rpc.Endpoint, bool) {
		return rpc.Endpoint{Name: name, Capabilities: []string{"config"}}, name == "vscode"
	}
	r.newRPCConfig = func(e rpc.Endpoint) rpcConfigBackend { return fake }

	r.SetConfigSource(context.Background(), PreferVSCode)

	got := r.Provider("openai")
	if got == nil {
		t.Fatal("provider missing")
	}
	if got.Enabled || got.Source != "rpc:vscode:workspace" {
		t.Errorf("provider = %+v, want workspace settings to win", got)
	}
}

func TestSaveProviderVSCodeRoutesToRPC(t *testing.T) {
	resetCache(t)

	fake := &fakeRPCConfig{reachable: true}
	r := NewConfigResolver()
	r.configSource = PreferVSCode
	r.lookupEndpoint = func(name string) (rpc.Endpoint, bool) {
		return rpc.Endpoint{Name: name, Capabilities: []string{"config"}}, name == "vscode"
	}
	r.newRPCConfig = func(e rpc.Endpoint) rpcConfigBackend { return fake }

	detail, err := r.SaveProvider(context.Background(), ResolvedProvider{Name: "openai", Enabled: true}, ScopeUser)
	if err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}
	if detail != "vscode User Settings" {
		t.Errorf("detail = %q", detail)
	}
	if len(fake.sets) != 1 || fake.sets[0] != "openai@user" {
		t.Errorf("sets = %v", fake.sets)
	}
}

func TestListSourcesNative(t *testing.T) {
	resetCache(t)
	r, userStore, _ := newNativeResolver(t)

	sources := r.ListSources(context.Background())
	if len(sources) != 2 {
		t.Fatalf("sources = %+v", sources)
	}
	if sources[0].Name != "native:user" || sources[0].Available {
		t.Errorf("user source = %+v, want unavailable before write", sources[0])
	}

	writeProviders(t, userStore, config.NewProvider("openai"))
	sources = r.ListSources(context.Background())
	if !sources[0].Available {
		t.Errorf("user source = %+v, want available after write", sources[0])
	}
}

func TestProvidersAtScope(t *testing.T) {
	resetCache(t)
	r, userStore, wsStore := newNativeResolver(t)

	writeProviders(t, userStore, config.NewProvider("openai"))
	writeProviders(t, wsStore, config.NewProvider("gemini"))

	user := r.ProvidersAtScope(context.Background(), ScopeUser)
	if len(user) != 1 || user[0].Name != "openai" {
		t.Errorf("user scope = %+v", user)
	}
	ws := r.ProvidersAtScope(context.Background(), ScopeWorkspace)
	if len(ws) != 1 || ws[0].Name != "gemini" {
		t.Errorf("workspace scope = %+v", ws)
	}
}

func TestWriteDestinationInfoNative(t *testing.T) {
	resetCache(t)
	r, _, _ := newNativeResolver(t)

	source, detail := r.WriteDestinationInfo(ScopeUser)
	if source != "native:user" {
		t.Errorf("source = %q", source)
	}
	if filepath.Base(detail) != "config.yaml" {
		t.Errorf("detail = %q", detail)
	}
}

func TestParseSourcePreference(t *testing.T) {
	if got := ParseSourcePreference("vscode"); got != PreferVSCode {
		t.Errorf("got %q", got)
	}
	if got := ParseSourcePreference("yaml"); got != PreferNative {
		t.Errorf("got %q", got)
	}
}

func TestEnabledDefaultSurvivesResolution(t *testing.T) {
	resetCache(t)
	r, userStore, _ := newNativeResolver(t)

	// A hand-written file without the enabled key.
	content := "providers:\n  - name: openai\n    models: [gpt-4o]\n"
	if err := os.MkdirAll(filepath.Dir(userStore.Path()), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(userStore.Path(), []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	r.LoadFromSources(context.Background())
	got := r.Provider("openai")
	if got == nil || !got.Enabled {
		t.Errorf("provider = %+v, want enabled default", got)
	}
}
