package rpc

import (
	"context"
	"fmt"
)

// ProviderConfig is the provider record exchanged with a remote host. Field
// names follow the host's camelCase wire convention.
type ProviderConfig struct {
	Name         string   `json:"name"`
	Enabled      bool     `json:"enabled"`
	Models       []string `json:"models"`
	APIBase      string   `json:"apiBase,omitempty"`
	Source       string   `json:"source"`
	SourceDetail string   `json:"sourceDetail"`
}

// ProviderUpdate carries the fields of a config/set call. Nil fields are
// left untouched on the host side.
type ProviderUpdate struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Models  []string `json:"models,omitempty"`
	APIBase *string  `json:"apiBase,omitempty"`
}

// Settings is the host's source-preference pair from config/getSettings.
type Settings struct {
	ConfigSource  string `json:"configSource,omitempty"`
	SecretsSource string `json:"secretsSource,omitempty"`
}

// ConfigProvider reads and writes provider configuration held by a remote
// host through config/get, config/set, config/getSettings, and the
// workspace/* methods.
type ConfigProvider struct {
	name   string
	client *Client
}

// NewConfigProvider creates a provider backed by a registered endpoint.
// Its name is "rpc:<endpoint name>".
func NewConfigProvider(e Endpoint) *ConfigProvider {
	return &ConfigProvider{
		name:   "rpc:" + e.Name,
		client: NewClientForEndpoint(e),
	}
}

// NewConfigProviderFromParts creates a provider from raw connection details.
func NewConfigProviderFromParts(name, socketPath, authToken string) *ConfigProvider {
	return &ConfigProvider{
		name:   "rpc:" + name,
		client: NewClient(socketPath, authToken),
	}
}

// Name returns the provider name in the form "rpc:<endpoint>".
func (p *ConfigProvider) Name() string { return p.name }

// Client exposes the underlying wire client.
func (p *ConfigProvider) Client() *Client { return p.client }

// Reachable reports whether the remote host answers a ping.
func (p *ConfigProvider) Reachable(ctx context.Context) bool {
	return p.client.Ping(ctx) == nil
}

type configGetParams struct {
	Provider      string `json:"provider"`
	Scope         string `json:"scope"`
	WorkspacePath string `json:"workspacePath,omitempty"`
}

type configGetResult struct {
	Providers []ProviderConfig `json:"providers"`
}

type configSetParams struct {
	Provider      string         `json:"provider"`
	Scope         string         `json:"scope"`
	WorkspacePath string         `json:"workspacePath,omitempty"`
	Config        ProviderUpdate `json:"config"`
}

type configSetResult struct {
	Success bool `json:"success"`
}

type settingsGetResult struct {
	Settings Settings `json:"settings"`
}

// Providers returns every provider the host knows at the scope. The
// wildcard "*" provider selector asks for all of them.
func (p *ConfigProvider) Providers(ctx context.Context, scope, workspacePath string) ([]ProviderConfig, error) {
	var res configGetResult
	params := configGetParams{Provider: "*", Scope: scope, WorkspacePath: workspacePath}
	if err := p.client.Call(ctx, "config/get", params, &res); err != nil {
		return nil, fmt.Errorf("getting providers from %s: %w", p.name, err)
	}
	return res.Providers, nil
}

// Provider returns one provider at the scope, or nil when the host does not
// know it.
func (p *ConfigProvider) Provider(ctx context.Context, provider, scope, workspacePath string) (*ProviderConfig, error) {
	var res configGetResult
	params := configGetParams{Provider: provider, Scope: scope, WorkspacePath: workspacePath}
	if err := p.client.Call(ctx, "config/get", params, &res); err != nil {
		return nil, fmt.Errorf("getting provider %s from %s: %w", provider, p.name, err)
	}
	if len(res.Providers) == 0 {
		return nil, nil
	}
	pc := res.Providers[0]
	return &pc, nil
}

// SetProvider applies the update to one provider at the scope.
func (p *ConfigProvider) SetProvider(ctx context.Context, provider, scope, workspacePath string, update ProviderUpdate) error {
	var res configSetResult
	params := configSetParams{
		Provider:      provider,
		Scope:         scope,
		WorkspacePath: workspacePath,
		Config:        update,
	}
	if err := p.client.Call(ctx, "config/set", params, &res); err != nil {
		return fmt.Errorf("setting provider %s on %s: %w", provider, p.name, err)
	}
	if !res.Success {
		return fmt.Errorf("setting provider %s on %s: host rejected write", provider, p.name)
	}
	return nil
}

// GetSettings returns the host's source-preference settings at the scope.
func (p *ConfigProvider) GetSettings(ctx context.Context, scope string) (Settings, error) {
	var res settingsGetResult
	params := struct {
		Scope string `json:"scope"`
	}{Scope: scope}
	if err := p.client.Call(ctx, "config/getSettings", params, &res); err != nil {
		return Settings{}, fmt.Errorf("getting settings from %s: %w", p.name, err)
	}
	return res.Settings, nil
}

// WorkspaceRoot returns the host's workspace root, or "" when the host has
// no workspace open.
func (p *ConfigProvider) WorkspaceRoot(ctx context.Context) (string, error) {
	var res struct {
		Path *string `json:"path"`
	}
	if err := p.client.Call(ctx, "workspace/getRoot", struct{}{}, &res); err != nil {
		return "", fmt.Errorf("getting workspace root from %s: %w", p.name, err)
	}
	if res.Path == nil {
		return "", nil
	}
	return *res.Path, nil
}

// WorkspacePaths returns every root of a multi-root workspace.
func (p *ConfigProvider) WorkspacePaths(ctx context.Context) ([]string, error) {
	var res struct {
		Paths []string `json:"paths"`
	}
	if err := p.client.Call(ctx, "workspace/getPaths", struct{}{}, &res); err != nil {
		return nil, fmt.Errorf("getting workspace paths from %s: %w", p.name, err)
	}
	return res.Paths, nil
}
