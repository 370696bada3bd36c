package resolver

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/openllm-dev/openllm/internal/rpc"
	"github.com/openllm-dev/openllm/internal/secrets"
)

// fakeRPCStore stands in for a wire-backed secret store.
type fakeRPCStore struct {
	name      string
	reachable bool
	values    map[string]string
	sets      map[string]string
	deletes   []string
	calls     int
}

func (f *fakeRPCStore) Name() string                       { return "rpc:" + f.name }
func (f *fakeRPCStore) Available(ctx context.Context) bool { return f.reachable }

func (f *fakeRPCStore) Get(ctx context.Context, key string) (string, bool) {
	f.calls++
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeRPCStore) Set(ctx context.Context, key, value string) error {
	if f.sets == nil {
		f.sets = make(map[string]string)
	}
	f.sets[key] = value
	return nil
}

func (f *fakeRPCStore) Delete(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

// unavailableStore is a secrets.Store that is never reachable.
type unavailableStore struct{ secrets.Store }

func (unavailableStore) Available(ctx context.Context) bool { return false }

func newTestResolver(fake *fakeRPCStore) *SecretResolver {
	r := NewSecretResolver()
	r.SetKeychain(secrets.NewMemoryStore())
	r.lookupEndpoint = func(name string) (rpc.Endpoint, bool) {
		if fake != nil && name == fake.name {
			return rpc.Endpoint{Name: name, SocketPath: "/tmp/fake.sock", Capabilities: []string{"secrets"}}, true
		}
		return rpc.Endpoint{}, false
	}
	r.newRPCStore = func(e rpc.Endpoint) rpcSecretBackend { return fake }
	return r
}

func TestResolveFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	r := newTestResolver(nil)
	got := r.Resolve(context.Background(), "openai")
	if got == nil {
		t.Fatal("expected a hit")
	}
	if got.Value != "sk-env" || got.Source != "environment" {
		t.Errorf("resolved = %+v", got)
	}
	if got.SourceDetail != "Environment variable $OPENAI_API_KEY" {
		t.Errorf("detail = %q", got.SourceDetail)
	}
}

func TestResolveEnvironmentDisabled(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	r := newTestResolver(nil)
	r.SetCheckEnvironment(false)
	if got := r.Resolve(context.Background(), "openai"); got != nil {
		t.Errorf("resolved = %+v, want miss", got)
	}
}

func TestResolveFromDotenv(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\n\nMY_PROVIDER_API_KEY=\"sk-dotenv\"\n"
	if err := os.WriteFile(dir+"/.env", []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)

	r := newTestResolver(nil)
	r.SetCheckEnvironment(false)
	r.SetCheckDotenv(true)

	got := r.Resolve(context.Background(), "my-provider")
	if got == nil {
		t.Fatal("expected a hit")
	}
	if got.Value != "sk-dotenv" || got.Source != "dotenv" {
		t.Errorf("resolved = %+v", got)
	}
}

func TestResolveFromKeychain(t *testing.T) {
	r := newTestResolver(nil)
	mem := secrets.NewMemoryStoreWith(map[string]string{"openai": "sk-kc"})
	r.SetKeychain(mem)

	got := r.Resolve(context.Background(), "openai")
	if got == nil {
		t.Fatal("expected a hit")
	}
	if got.Value != "sk-kc" || got.Source != "keychain" || got.SourceDetail != "System Keychain" {
		t.Errorf("resolved = %+v", got)
	}
}

func TestKeychainModeNeverCallsRPC(t *testing.T) {
	fake := &fakeRPCStore{name: "vscode", reachable: true, values: map[string]string{"openai": "sk-rpc"}}
	r := newTestResolver(fake)
	r.SetSecretsStore(StoreKeychain)

	if got := r.Resolve(context.Background(), "openai"); got != nil {
		t.Errorf("resolved = %+v, want miss", got)
	}
	if fake.calls != 0 {
		t.Errorf("rpc store probed %d times in keychain mode", fake.calls)
	}
}

func TestVSCodeModeResolvesViaRPC(t *testing.T) {
	fake := &fakeRPCStore{name: "vscode", reachable: true, values: map[string]string{"openai": "sk-rpc"}}
	r := newTestResolver(fake)
	r.SetSecretsStore(StoreVSCode)
	// Keychain holds a value too, but VSCode mode must not consult it.
	r.SetKeychain(secrets.NewMemoryStoreWith(map[string]string{"openai": "sk-kc"}))

	got := r.Resolve(context.Background(), "openai")
	if got == nil {
		t.Fatal("expected a hit")
	}
	if got.Value != "sk-rpc" || got.Source != "rpc:vscode" || got.SourceDetail != "vscode SecretStorage" {
		t.Errorf("resolved = %+v", got)
	}
}

func TestVSCodeModeSkipsUnreachableEndpoint(t *testing.T) {
	fake := &fakeRPCStore{name: "vscode", reachable: false, values: map[string]string{"openai": "sk-rpc"}}
	r := newTestResolver(fake)
	r.SetSecretsStore(StoreVSCode)

	if got := r.Resolve(context.Background(), "openai"); got != nil {
		t.Errorf("resolved = %+v, want miss on unreachable endpoint", got)
	}
}

func TestResolveFallbackStores(t *testing.T) {
	r := newTestResolver(nil)
	r.AddFallback(secrets.NewMemoryStoreWith(map[string]string{"mistral": "sk-fb"}))

	got := r.Resolve(context.Background(), "mistral")
	if got == nil {
		t.Fatal("expected a hit")
	}
	if got.Value != "sk-fb" || got.Source != "memory" {
		t.Errorf("resolved = %+v", got)
	}
}

func TestEnvironmentWinsOverKeychain(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	r := newTestResolver(nil)
	r.SetKeychain(secrets.NewMemoryStoreWith(map[string]string{"openai": "sk-kc"}))

	got := r.Resolve(context.Background(), "openai")
	if got == nil || got.Source != "environment" {
		t.Errorf("resolved = %+v, want environment first", got)
	}
}

func TestParseSecretsStore(t *testing.T) {
	tests := []struct {
		in   string
		want SecretsStore
	}{
		{"vscode", StoreVSCode},
		{"VS-Code", StoreVSCode},
		{"secretstorage", StoreVSCode},
		{"keychain", StoreKeychain},
		{"anything", StoreKeychain},
	}
	for _, tc := range tests {
		if got := ParseSecretsStore(tc.in); got != tc.want {
			t.Errorf("ParseSecretsStore(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStoreSecretKeychain(t *testing.T) {
	r := newTestResolver(nil)
	mem := secrets.NewMemoryStore()
	r.SetKeychain(mem)

	ctx := context.Background()
	detail, err := r.StoreSecret(ctx, "openai", "sk-new", "keychain")
	if err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}
	if detail != "System Keychain" {
		t.Errorf("detail = %q", detail)
	}
	if v, ok := mem.Get(ctx, "openai"); !ok || v != "sk-new" {
		t.Errorf("stored value = %q, %v", v, ok)
	}
}

func TestStoreSecretKeychainUnavailable(t *testing.T) {
	r := newTestResolver(nil)
	r.SetKeychain(unavailableStore{secrets.NewMemoryStore()})

	if _, err := r.StoreSecret(context.Background(), "k", "v", "keychain"); err == nil {
		t.Error("expected error when keychain unavailable")
	}
}

func TestStoreSecretRPCRouting(t *testing.T) {
	fake := &fakeRPCStore{name: "vscode", reachable: true}
	r := newTestResolver(fake)

	detail, err := r.StoreSecret(context.Background(), "openai", "sk-rpc", "rpc:vscode")
	if err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}
	if detail != "vscode SecretStorage" {
		t.Errorf("detail = %q", detail)
	}
	if fake.sets["openai"] != "sk-rpc" {
		t.Errorf("sets = %v", fake.sets)
	}
}

func TestStoreSecretVSCodeShorthand(t *testing.T) {
	fake := &fakeRPCStore{name: "vscode", reachable: true}
	r := newTestResolver(fake)

	if _, err := r.StoreSecret(context.Background(), "k", "v", "vscode"); err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}
	if fake.sets["k"] != "v" {
		t.Errorf("sets = %v", fake.sets)
	}
}

func TestStoreSecretAutoRouting(t *testing.T) {
	// Keychain preference: auto goes to keychain.
	r := newTestResolver(nil)
	mem := secrets.NewMemoryStore()
	r.SetKeychain(mem)
	detail, err := r.StoreSecret(context.Background(), "k", "v", "auto")
	if err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}
	if detail != "System Keychain" {
		t.Errorf("detail = %q", detail)
	}

	// VSCode preference: auto goes to the first registered endpoint.
	fake := &fakeRPCStore{name: "vscode", reachable: true}
	r2 := newTestResolver(fake)
	r2.SetSecretsStore(StoreVSCode)
	detail, err = r2.StoreSecret(context.Background(), "k", "v", "auto")
	if err != nil {
		t.Fatalf("StoreSecret: %v", err)
	}
	if detail != "vscode SecretStorage" {
		t.Errorf("detail = %q", detail)
	}
}

func TestStoreSecretAutoNoDestination(t *testing.T) {
	r := newTestResolver(nil)
	r.SetSecretsStore(StoreVSCode) // no endpoint registered

	if _, err := r.StoreSecret(context.Background(), "k", "v", "auto"); !errors.Is(err, ErrNoWriteDestination) {
		t.Errorf("err = %v, want ErrNoWriteDestination", err)
	}
}

func TestStoreSecretUnknownStore(t *testing.T) {
	r := newTestResolver(nil)
	if _, err := r.StoreSecret(context.Background(), "k", "v", "floppy"); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestDeleteSecretSkipsKeychainProbe(t *testing.T) {
	// Deletes go through even when the keychain probe says unavailable, so
	// stale entries can still be cleared.
	mem := secrets.NewMemoryStoreWith(map[string]string{"openai": "sk"})
	r := newTestResolver(nil)
	r.SetKeychain(unavailableStore{mem})

	if _, err := r.DeleteSecret(context.Background(), "openai", "keychain"); err != nil {
		t.Fatalf("DeleteSecret: %v", err)
	}
	if _, ok := mem.Get(context.Background(), "openai"); ok {
		t.Error("secret still present after delete")
	}
}

func TestWriteDestinationInfo(t *testing.T) {
	r := newTestResolver(nil)
	source, detail := r.WriteDestinationInfo(context.Background())
	if source != "keychain" || detail != "System Keychain" {
		t.Errorf("info = %q, %q", source, detail)
	}

	fake := &fakeRPCStore{name: "vscode", reachable: true}
	r2 := newTestResolver(fake)
	r2.SetSecretsStore(StoreVSCode)
	source, detail = r2.WriteDestinationInfo(context.Background())
	if source != "rpc:vscode" || detail != "vscode SecretStorage" {
		t.Errorf("info = %q, %q", source, detail)
	}
}

func TestAllSourceInfo(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	r := newTestResolver(nil)
	r.SetKeychain(secrets.NewMemoryStoreWith(map[string]string{"gemini": "sk-kc"}))

	got := r.AllSourceInfo(context.Background(), []string{"openai", "gemini", "mistral"})
	if len(got) != 3 {
		t.Fatalf("got %d entries", len(got))
	}
	if info := got["openai"]; info == nil || info.Source != "environment" || info.EnvVar != "OPENAI_API_KEY" {
		t.Errorf("openai = %+v", info)
	}
	if info := got["gemini"]; info == nil || info.Source != "keychain" {
		t.Errorf("gemini = %+v", info)
	}
	if got["mistral"] != nil {
		t.Errorf("mistral = %+v, want nil", got["mistral"])
	}
}

func TestListSources(t *testing.T) {
	r := newTestResolver(nil)
	sources := r.ListSources(context.Background())

	names := make(map[string]bool)
	for _, s := range sources {
		names[s.Name] = s.Available
	}
	if available, ok := names["environment"]; !ok || !available {
		t.Errorf("sources = %+v, want environment available", sources)
	}
	if _, ok := names["keychain"]; !ok {
		t.Errorf("sources = %+v, want keychain listed", sources)
	}
	if _, ok := names["rpc:vscode"]; ok {
		t.Error("keychain mode should not list RPC sources")
	}
}

func TestListSourcesVSCodeMode(t *testing.T) {
	fake := &fakeRPCStore{name: "vscode", reachable: true}
	r := newTestResolver(fake)
	r.SetSecretsStore(StoreVSCode)

	sources := r.ListSources(context.Background())
	found := false
	for _, s := range sources {
		if s.Name == "rpc:vscode" && s.Available {
			found = true
		}
		if s.Name == "keychain" {
			t.Error("vscode mode should not list the keychain")
		}
	}
	if !found {
		t.Errorf("sources = %+v, want rpc:vscode available", sources)
	}
}

func TestEnvKeyName(t *testing.T) {
	if got := EnvKeyName("my-provider"); got != "MY_PROVIDER_API_KEY" {
		t.Errorf("EnvKeyName = %q", got)
	}
}
